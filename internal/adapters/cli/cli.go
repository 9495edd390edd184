package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"bikeshop-pos/internal/app"
	"bikeshop-pos/internal/core"
)

const usage = `Available: stock, low, lookup <ref>, sell, receive, sales [status], cancel <ref>, token <username>, adduser <username> <role> <full name>`

// Env is what a one-shot command reads and writes.
type Env struct {
	// Operator is the username recorded on sales, receipts and cancellations.
	Operator string
	In       io.Reader
	Out      io.Writer
}

// Run executes a one-shot CLI command.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, env Env, args []string) error {
	if len(args) == 0 {
		return errors.New("no command given\n" + usage)
	}

	switch args[0] {
	case "stock":
		result, err := svc.GetStockLevels(ctx)
		if err != nil {
			return fmt.Errorf("failed to get stock levels: %w", err)
		}
		printStock(env.Out, "STOCK LEVELS", result.Levels)

	case "low":
		result, err := svc.GetLowStock(ctx)
		if err != nil {
			return fmt.Errorf("failed to get low stock: %w", err)
		}
		printStock(env.Out, "LOW STOCK", result.Levels)

	case "lookup":
		if len(args) < 2 {
			return errors.New("usage: app lookup <id|sku>")
		}
		snap, err := svc.LookupProduct(ctx, args[1])
		if err != nil {
			return fmt.Errorf("lookup failed: %w", err)
		}
		printProduct(env.Out, snap)

	case "sell":
		var req app.CompleteSaleRequest
		if err := json.NewDecoder(env.In).Decode(&req); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
		op, err := operator(ctx, svc, env.Operator)
		if err != nil {
			return err
		}
		req.OperatorID = op.ID
		result := svc.CompleteSale(ctx, req)
		if !result.Success {
			return fmt.Errorf("sale failed [%s]: %s", result.Code, result.Message)
		}
		printSaleResult(env.Out, result)

	case "receive":
		var in core.GoodsReceiptInput
		if err := json.NewDecoder(env.In).Decode(&in); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
		op, err := operator(ctx, svc, env.Operator)
		if err != nil {
			return err
		}
		in.OperatorID = op.ID
		draft, err := svc.CreateReceipt(ctx, in)
		if err != nil {
			return fmt.Errorf("failed to create goods receipt: %w", err)
		}
		approved, err := svc.ApproveReceipt(ctx, draft.ID, op.ID)
		if err != nil {
			return fmt.Errorf("goods receipt %s created but approval failed: %w", draft.ReceiptNumber, err)
		}
		fmt.Fprintf(env.Out, "Goods receipt %s approved: %d line(s), total cost %s\n",
			approved.ReceiptNumber, len(approved.Lines), approved.TotalCost.StringFixed(2))

	case "sales":
		req := app.ListSalesRequest{Limit: 50}
		if len(args) > 1 {
			req.Status = args[1]
		}
		result, err := svc.ListSales(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to list sales: %w", err)
		}
		printSales(env.Out, result.Sales)

	case "cancel":
		if len(args) < 2 {
			return errors.New("usage: app cancel <sale id|sale number>")
		}
		op, err := operator(ctx, svc, env.Operator)
		if err != nil {
			return err
		}
		sale, err := svc.CancelSale(ctx, args[1], op.ID)
		if err != nil {
			return fmt.Errorf("cancel failed: %w", err)
		}
		fmt.Fprintf(env.Out, "Sale %s cancelled; %d line(s) returned to stock.\n", sale.SaleNumber, len(sale.Lines))

	case "token":
		if len(args) < 2 {
			return errors.New("usage: app token <username>")
		}
		result, err := svc.IssueToken(ctx, args[1])
		if err != nil {
			return fmt.Errorf("failed to issue token: %w", err)
		}
		fmt.Fprintln(env.Out, result.Token)

	case "adduser":
		if len(args) < 4 {
			return errors.New("usage: app adduser <username> <Admin|Manager|Cashier> <full name>")
		}
		u, err := svc.CreateUser(ctx, core.UserInput{
			Username: args[1],
			Role:     args[2],
			FullName: strings.Join(args[3:], " "),
		})
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		fmt.Fprintf(env.Out, "User %s (%s) created with id %d.\n", u.Username, u.Role, u.ID)

	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], usage)
	}
	return nil
}

// operator resolves the configured operator username to an active user.
func operator(ctx context.Context, svc app.ApplicationService, username string) (*core.User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, errors.New("no operator configured; set POS_OPERATOR")
	}
	u, err := svc.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("operator %q: %w", username, err)
	}
	if !u.IsActive {
		return nil, fmt.Errorf("operator %q is disabled", username)
	}
	return u, nil
}

func printStock(w io.Writer, title string, levels []core.StockLevel) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintf(w, "  %-14s %-30s %8s  %-10s\n", "SKU", "NAME", "ON HAND", "STATUS")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for _, l := range levels {
		fmt.Fprintf(w, "  %-14s %-30s %8d  %-10s\n", l.SKU, truncate(l.Name, 30), l.OnHand, l.Status)
	}
	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintf(w, "  %d product(s)\n", len(levels))
}

func printProduct(w io.Writer, p *core.ProductSnapshot) {
	fmt.Fprintf(w, "SKU:       %s\n", p.SKU)
	fmt.Fprintf(w, "NAME:      %s\n", p.Name)
	fmt.Fprintf(w, "PRICE:     %s (tax %s%%)\n", p.UnitPrice.StringFixed(2), p.TaxRate.StringFixed(2))
	fmt.Fprintf(w, "ON HAND:   %d\n", p.OnHand)
	fmt.Fprintf(w, "STATUS:    %s (min %d, reorder %d)\n", p.Status, p.MinimumStock, p.ReorderLevel)
}

func printSaleResult(w io.Writer, r *app.SaleResult) {
	fmt.Fprintln(w, r.Message)
	if r.Summary != nil {
		fmt.Fprintf(w, "  Subtotal : %12s\n", r.Summary.Subtotal.StringFixed(2))
		fmt.Fprintf(w, "  Tax      : %12s\n", r.Summary.Tax.StringFixed(2))
		if !r.Summary.DiscountAmount.IsZero() {
			fmt.Fprintf(w, "  Discount : %12s\n", r.Summary.DiscountAmount.Neg().StringFixed(2))
		}
		fmt.Fprintf(w, "  Total    : %12s\n", r.Summary.Total.StringFixed(2))
	}
	fmt.Fprintf(w, "  Paid     : %12s\n", r.AmountPaid.StringFixed(2))
	fmt.Fprintf(w, "  Change   : %12s\n", r.Change.StringFixed(2))
	for _, l := range r.StockAfter {
		if l.Status.NeedsAttention() {
			fmt.Fprintf(w, "  ! %s now %s (%d on hand)\n", l.SKU, l.Status, l.OnHand)
		}
	}
}

func printSales(w io.Writer, sales []core.Sale) {
	fmt.Fprintf(w, "%-14s %-17s %-5s %-8s %12s  %-10s\n", "NUMBER", "SOLD AT", "PAY", "DOC", "TOTAL", "STATUS")
	fmt.Fprintln(w, strings.Repeat("-", 74))
	for _, s := range sales {
		fmt.Fprintf(w, "%-14s %-17s %-5s %-8s %12s  %-10s\n",
			s.SaleNumber, s.SoldAt.Format("2006-01-02 15:04"), s.PaymentMethod, s.DocumentType,
			s.Total.StringFixed(2), s.Status)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
