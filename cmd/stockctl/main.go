// Command stockctl is the back-office stock tool. It talks to a running
// pos-service over the pos.v1.StockLedger RPC.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
	inventory "github.com/dmehra2102/pos-order-engine/internal/inventory/domain"
	invgrpc "github.com/dmehra2102/pos-order-engine/internal/inventory/infrastructure/grpc"
)

const usage = `usage: stockctl [--addr host:port] <command> [flags]

commands:
  available <product-id>                     print the current stock quantity
  adjust <product-id> --mode add|remove|set --quantity N [--reason text]
  low-stock                                  list products at or under the low-stock threshold
  restock-low [--amount 10]                  add --amount to every low-stock product
`

// Ledger is the RPC client surface stockctl drives.
type Ledger interface {
	GetAvailable(ctx context.Context, id catalog.ProductID) (int, error)
	AdjustStock(ctx context.Context, adj inventory.Adjustment) (int, error)
	ListLowStock(ctx context.Context) (*invgrpc.ListLowStockResponse, error)
}

var errUsage = errors.New("bad usage")

func main() {
	global := pflag.NewFlagSet("stockctl", pflag.ContinueOnError)
	global.SetInterspersed(false)
	addr := global.String("addr", envOr("STOCKCTL_ADDR", "localhost:9090"), "pos-service gRPC address")
	timeout := global.Duration("timeout", 10*time.Second, "per-command deadline")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := global.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	client, err := invgrpc.Dial(*addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "stockctl:", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, client, global.Args(), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "stockctl:", err)
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, ledger Ledger, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "available":
		id, err := productArg(args)
		if err != nil {
			return err
		}
		qty, err := ledger.GetAvailable(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "product %d: %d available\n", id, qty)
		return nil

	case "adjust":
		fs := pflag.NewFlagSet("adjust", pflag.ContinueOnError)
		fs.SetOutput(io.Discard)
		mode := fs.String("mode", "", "add, remove or set")
		qty := fs.Int("quantity", 0, "units to add, remove, or the new level for set")
		reason := fs.String("reason", "manual adjustment", "journal reason")
		if err := fs.Parse(args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		id, err := productArg(fs.Args())
		if err != nil {
			return err
		}
		resulting, err := ledger.AdjustStock(ctx, inventory.Adjustment{
			ProductID: id, Mode: inventory.AdjustMode(*mode), Quantity: *qty, Reason: *reason,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "product %d: now %d\n", id, resulting)
		return nil

	case "low-stock":
		resp, err := ledger.ListLowStock(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "ID\tNAME\tQTY\tSTATUS\n")
		for _, p := range resp.Products {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", p.ID, p.Name, p.StockQuantity, p.Status)
		}
		return tw.Flush()

	case "restock-low":
		fs := pflag.NewFlagSet("restock-low", pflag.ContinueOnError)
		fs.SetOutput(io.Discard)
		amount := fs.Int("amount", 10, "units added to each low-stock product")
		reason := fs.String("reason", "quick restock", "journal reason")
		if err := fs.Parse(args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		if *amount < 1 {
			return fmt.Errorf("%w: --amount must be positive", errUsage)
		}
		resp, err := ledger.ListLowStock(ctx)
		if err != nil {
			return err
		}
		var errs []error
		for _, p := range resp.Products {
			qty, err := ledger.AdjustStock(ctx, inventory.Adjustment{
				ProductID: p.ID, Mode: inventory.AdjustAdd, Quantity: *amount, Reason: *reason,
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("product %d: %w", p.ID, err))
				continue
			}
			fmt.Fprintf(out, "product %d (%s): %d -> %d\n", p.ID, p.Name, p.StockQuantity, qty)
		}
		fmt.Fprintf(out, "restocked %d of %d products\n", len(resp.Products)-len(errs), len(resp.Products))
		return errors.Join(errs...)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func productArg(args []string) (catalog.ProductID, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: expected one product id", errUsage)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid product id %q", errUsage, args[0])
	}
	return catalog.ProductID(id), nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
