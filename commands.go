package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gitlab.com/yelinaung/ledger-core/internal/category"
	"gitlab.com/yelinaung/ledger-core/internal/exchange"
	"gitlab.com/yelinaung/ledger-core/internal/ledger"
	"gitlab.com/yelinaung/ledger-core/internal/models"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage categories and subcategories",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the category tree",
		RunE: withSession(func(_ context.Context, e *env, cmd *cobra.Command, _ []string) error {
			return printCategories(cmd.OutOrStdout(), e.app.Categories.Categories())
		}),
	}

	var (
		emoji, parent, typ string
	)
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a category",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
			var p *models.Category
			if parent != "" {
				found, err := e.app.Categories.FindCategory(category.ByName(parent))
				if err != nil {
					return err
				}
				p = found
			}
			c, err := e.app.Categories.AddCategory(ctx, args[0], emoji, p, models.CategoryType(typ))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s (%s)\n", c.Emoji, c.Name, c.Type)
			return nil
		}),
	}
	add.Flags().StringVar(&emoji, "emoji", "", "category emoji")
	add.Flags().StringVar(&parent, "parent", "", "parent category name")
	add.Flags().StringVar(&typ, "type", string(models.CategoryTypeExpense), "income or expense")

	var renameEmoji, renameParent string
	update := &cobra.Command{
		Use:   "update NAME NEW_NAME",
		Short: "Rename, re-emoji or reparent a category",
		Args:  cobra.ExactArgs(2),
		RunE: withSession(func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
			current, err := e.app.Categories.FindCategory(category.ByName(args[0]))
			if err != nil {
				return err
			}
			var p *models.Category
			if renameParent != "" {
				found, err := e.app.Categories.FindCategory(category.ByName(renameParent))
				if err != nil {
					return err
				}
				p = found
			}
			emoji := flagOr(cmd, "emoji", renameEmoji, current.Emoji)
			c, err := e.app.Categories.UpdateCategory(ctx, args[0], args[1], emoji, p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", c.Name)
			return nil
		}),
	}
	update.Flags().StringVar(&renameEmoji, "emoji", "", "new emoji (default: keep)")
	update.Flags().StringVar(&renameParent, "parent", "", "new parent category name")

	del := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a category without children",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
			if err := e.app.Categories.DeleteCategory(ctx, args[0]); err != nil {
				var hc *category.HasChildrenError
				if errors.As(err, &hc) {
					return fmt.Errorf("move or delete %s first: %w", strings.Join(hc.Children, ", "), err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		}),
	}

	var subEmoji, subType string
	addSub := &cobra.Command{
		Use:   "add-sub PARENT NAME",
		Short: "Add a subcategory",
		Args:  cobra.ExactArgs(2),
		RunE: withSession(func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
			sub, err := e.app.Categories.AddSubcategory(ctx, args[0], args[1], subEmoji, models.CategoryType(subType))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s under %s (%s)\n", sub.Name, args[0], sub.Type)
			return nil
		}),
	}
	addSub.Flags().StringVar(&subEmoji, "emoji", "", "subcategory emoji")
	addSub.Flags().StringVar(&subType, "type", "", "income or expense (default: parent's type)")

	delSub := &cobra.Command{
		Use:   "delete-sub PARENT NAME",
		Short: "Delete a subcategory",
		Args:  cobra.ExactArgs(2),
		RunE: withSession(func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
			if err := e.app.Categories.DeleteSubcategory(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s from %s\n", args[1], args[0])
			return nil
		}),
	}

	cmd.AddCommand(list, add, update, del, addSub, delSub)
	return cmd
}

func printCategories(out io.Writer, categories []models.Category) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tID")
	for _, c := range categories {
		indent := ""
		if c.ParentID != nil && !models.IsContainerID(*c.ParentID) {
			indent = "  "
		}
		fmt.Fprintf(w, "%s%s %s\t%s\t%s\n", indent, c.Emoji, c.Name, c.Type, c.ID)
		for _, sub := range c.Subcategories {
			fmt.Fprintf(w, "%s  · %s %s\t%s\t%s\n", indent, sub.Emoji, sub.Name, sub.Type, sub.ID)
		}
	}
	return w.Flush()
}

// entryFlags are shared by tx add and tx edit.
type entryFlags struct {
	wallet, category, amount, currency, merchant, note, date string
}

func (f *entryFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.wallet, "wallet", "default", "wallet id")
	cmd.Flags().StringVar(&f.category, "category", "", "category or subcategory name")
	cmd.Flags().StringVar(&f.amount, "amount", "", "amount as entered")
	cmd.Flags().StringVar(&f.currency, "currency", "", "currency of the amount (default: primary)")
	cmd.Flags().StringVar(&f.merchant, "merchant", "", "merchant")
	cmd.Flags().StringVar(&f.note, "note", "", "note")
	cmd.Flags().StringVar(&f.date, "date", "", "date as YYYY-MM-DD (default: today)")
}

// entry builds a ledger entry from the flags. Flags not set on cmd keep the
// values of base, so tx edit only changes what was asked for. tx add passes
// a zero base and takes every flag, defaults included.
func (f *entryFlags) entry(
	cmd *cobra.Command,
	categories *category.Store,
	loc *time.Location,
	base models.Transaction,
) (ledger.Entry, error) {
	use := func(name string) bool { return base.ID == "" || cmd.Flags().Changed(name) }

	out := ledger.Entry{
		WalletID:         base.WalletID,
		CategoryID:       base.CategoryID,
		Merchant:         base.Merchant,
		Note:             base.Note,
		Date:             base.Date,
		OriginalAmount:   base.OriginalAmount,
		OriginalCurrency: base.OriginalCurrency,
	}

	if use("amount") {
		amount, err := decimal.NewFromString(strings.ReplaceAll(f.amount, ",", ""))
		if err != nil {
			return ledger.Entry{}, fmt.Errorf("invalid amount %q: %w", f.amount, err)
		}
		out.OriginalAmount = amount
	}
	if use("category") {
		lookup := categories.FindCategoryOrSubcategory(category.ByName(f.category))
		if !lookup.Found() {
			return ledger.Entry{}, fmt.Errorf("%w: %s", category.ErrCategoryNotFound, f.category)
		}
		out.CategoryID = lookup.ID()
	}
	if use("date") && f.date != "" {
		on, err := time.ParseInLocation(time.DateOnly, f.date, loc)
		if err != nil {
			return ledger.Entry{}, fmt.Errorf("invalid date %q: %w", f.date, err)
		}
		out.Date = on
	}
	if use("wallet") {
		out.WalletID = f.wallet
	}
	if use("currency") {
		out.OriginalCurrency = f.currency
	}
	if use("merchant") {
		out.Merchant = f.merchant
	}
	if use("note") {
		out.Note = f.note
	}
	return out, nil
}

// flagOr returns value when the named flag was set on cmd and current
// otherwise.
func flagOr(cmd *cobra.Command, name, value, current string) string {
	if cmd.Flags().Changed(name) {
		return value
	}
	return current
}

func txCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Record and list transactions",
	}

	var addFlags entryFlags
	add := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction",
		RunE: withSession(func(ctx context.Context, e *env, cmd *cobra.Command, _ []string) error {
			entry, err := addFlags.entry(cmd, e.app.Categories, e.cfg.Location(), models.Transaction{})
			if err != nil {
				return err
			}
			tx, err := e.app.Ledger.Add(ctx, entry)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s %s in %s\n",
				tx.ID, exchange.FormatAmount(tx.Amount, tx.PrimaryCurrency), tx.CategoryName)
			return nil
		}),
	}
	addFlags.bind(add)

	var editFlags entryFlags
	edit := &cobra.Command{
		Use:   "edit ID",
		Short: "Change a transaction; unset flags keep their current values",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
			current, err := e.app.Ledger.Get(args[0])
			if err != nil {
				return err
			}
			entry, err := editFlags.entry(cmd, e.app.Categories, e.cfg.Location(), current)
			if err != nil {
				return err
			}
			tx, err := e.app.Ledger.Edit(ctx, args[0], entry)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s %s\n", tx.ID, exchange.FormatAmount(tx.Amount, tx.PrimaryCurrency))
			return nil
		}),
	}
	editFlags.bind(edit)

	var listWallet string
	list := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		RunE: withSession(func(_ context.Context, e *env, cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tCATEGORY\tAMOUNT\tORIGINAL\tMERCHANT\tADDED\tID")
			for _, tx := range e.app.Ledger.List(ledger.Filter{WalletID: listWallet}) {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					tx.Date.In(e.cfg.Location()).Format(time.DateOnly),
					tx.CategoryName,
					exchange.FormatAmount(tx.Amount, tx.PrimaryCurrency),
					exchange.FormatAmount(tx.OriginalAmount, tx.OriginalCurrency),
					tx.Merchant,
					humanize.Time(tx.CreatedAt),
					tx.ID)
			}
			return w.Flush()
		}),
	}
	list.Flags().StringVar(&listWallet, "wallet", "", "wallet id (default: all)")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
			if err := e.app.Ledger.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		}),
	}

	var receiptWallet string
	fromReceipt := &cobra.Command{
		Use:   "receipt IMAGE",
		Short: "Record a transaction from a receipt photo",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read receipt: %w", err)
			}
			tx, err := e.app.AddReceipt(ctx, receiptWallet, image, mimeTypeFor(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s %s at %s in %s\n",
				tx.ID, exchange.FormatAmount(tx.Amount, tx.PrimaryCurrency), tx.Merchant, tx.CategoryName)
			return nil
		}),
	}
	fromReceipt.Flags().StringVar(&receiptWallet, "wallet", "default", "wallet id")

	repair := &cobra.Command{
		Use:   "repair",
		Short: "Move transactions of deleted categories to the matching sentinel",
		RunE: withSession(func(ctx context.Context, e *env, cmd *cobra.Command, _ []string) error {
			n, err := e.app.Ledger.RepairOrphans(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Repaired %d transactions\n", n)
			return nil
		}),
	}

	cmd.AddCommand(add, edit, list, del, fromReceipt, repair)
	return cmd
}

func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	default:
		return "image/jpeg"
	}
}

func budgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Manage budgets",
	}

	var (
		wallet, categoryName, amount, currency, period string
		allPeriods                                     bool
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Create a budget",
		RunE: withSession(func(ctx context.Context, e *env, cmd *cobra.Command, _ []string) error {
			limit, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}
			lookup := e.app.Categories.FindCategoryOrSubcategory(category.ByName(categoryName))
			if !lookup.Found() {
				return fmt.Errorf("%w: %s", category.ErrCategoryNotFound, categoryName)
			}
			b, err := e.app.Budgets.SaveBudget(ctx, models.Budget{
				WalletID:          wallet,
				CategoryID:        lookup.ID(),
				Amount:            limit,
				Currency:          currency,
				Period:            models.Period(period),
				ApplyToAllPeriods: allPeriods,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Budget %s: %s %s for %s\n",
				b.ID, exchange.FormatAmount(b.Amount, b.Currency), b.Period, b.CategoryName)
			return nil
		}),
	}
	set.Flags().StringVar(&wallet, "wallet", "default", "wallet id")
	set.Flags().StringVar(&categoryName, "category", "", "category or subcategory name")
	set.Flags().StringVar(&amount, "amount", "", "limit per period")
	set.Flags().StringVar(&currency, "currency", "", "budget currency (default: primary)")
	set.Flags().StringVar(&period, "period", string(models.PeriodMonthly), "daily, weekly, monthly or yearly")
	set.Flags().BoolVar(&allPeriods, "all-periods", false, "show the budget on every period basis")

	var statusWallet, statusPeriod string
	status := &cobra.Command{
		Use:   "status",
		Short: "Show spending against budgets for the current period",
		RunE: withSession(func(ctx context.Context, e *env, cmd *cobra.Command, _ []string) error {
			statuses, err := e.app.BudgetStatuses(ctx, statusWallet, models.Period(statusPeriod), time.Now().In(e.cfg.Location()))
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tSPENT\tLIMIT\tREMAINING\tUSED\tID")
			for _, st := range statuses {
				used := st.PercentUsed.String() + "%"
				if st.OverBudget() {
					used += " over"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					st.Budget.CategoryName,
					exchange.FormatAmount(st.Spent, st.Budget.Currency),
					exchange.FormatAmount(st.Limit, st.Budget.Currency),
					exchange.FormatAmount(st.Remaining, st.Budget.Currency),
					used,
					st.Budget.ID)
			}
			return w.Flush()
		}),
	}
	status.Flags().StringVar(&statusWallet, "wallet", "default", "wallet id")
	status.Flags().StringVar(&statusPeriod, "period", string(models.PeriodMonthly), "period basis")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a budget",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
			if err := e.app.Budgets.DeleteBudget(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted budget %s\n", args[0])
			return nil
		}),
	}

	cmd.AddCommand(set, status, del)
	return cmd
}

func ratesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Exchange rates and display currencies",
	}

	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch the latest rates",
		RunE: withSession(func(ctx context.Context, e *env, cmd *cobra.Command, _ []string) error {
			if !e.app.Refresher.RefreshOnce(ctx) {
				return errors.New("rate refresh failed")
			}
			snap, _ := e.app.Rates.Cached(e.app.Converter.Base())
			fmt.Fprintf(cmd.OutOrStdout(), "Fetched %d %s rates dated %s\n",
				len(snap.Rates), snap.Base, snap.Date.Format(time.DateOnly))
			return nil
		}),
	}

	convert := &cobra.Command{
		Use:   "convert AMOUNT FROM [TO]",
		Short: "Convert an amount, into the primary currency by default",
		Args:  cobra.RangeArgs(2, 3),
		RunE: withSession(func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}
			to := e.app.Converter.Primary()
			if len(args) == 3 {
				to = args[2]
			}
			res, err := e.app.Converter.ConvertAmount(ctx, amount, args[1], to)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s (rate %s)\n",
				exchange.FormatAmount(amount, args[1]),
				exchange.FormatAmount(res.Amount, to),
				res.Rate.StringFixed(6))
			return nil
		}),
	}

	watch := &cobra.Command{
		Use:   "watch",
		Short: "Keep rates fresh until interrupted",
		RunE: withSession(func(ctx context.Context, e *env, _ *cobra.Command, _ []string) error {
			e.app.Refresher.Run(ctx)
			return nil
		}),
	}

	cmd.AddCommand(refresh, convert, watch)
	return cmd
}

func chartCmd() *cobra.Command {
	var wallet, out, title string
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Render spending per category as a PNG pie chart",
		RunE: withSession(func(ctx context.Context, e *env, cmd *cobra.Command, _ []string) error {
			png, err := e.app.SpendingChart(ctx, wallet, title)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, png, 0o600); err != nil {
				return fmt.Errorf("failed to write chart: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", out, humanize.Bytes(uint64(len(png))))
			return nil
		}),
	}
	cmd.Flags().StringVar(&wallet, "wallet", "default", "wallet id")
	cmd.Flags().StringVar(&out, "out", "spending.png", "output file")
	cmd.Flags().StringVar(&title, "title", "Spending by category", "chart title")
	return cmd
}
