package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"finance/internal/cli"
	"finance/internal/core"
	applog "finance/internal/log"
	"finance/internal/report"
	"finance/internal/services"

	"github.com/GiGurra/boa/pkg/boa"
)

type Params struct {
	User     string `descr:"User whose transactions are reported"`
	Tenant   string `descr:"Tenant ID, defaults to DEFAULT_TENANT_ID" optional:"true"`
	From     string `descr:"First day of the range (YYYY-MM-DD), defaults to the start of the current month" optional:"true"`
	To       string `descr:"Last day of the range (YYYY-MM-DD), defaults to the end of the month of From" optional:"true"`
	Upcoming int    `descr:"Pending occurrences listed per recurring template, 0 to skip" default:"3"`
	Xlsx     string `descr:"Also write the report to this xlsx file" optional:"true"`
}

func main() {
	boa.NewCmdT[Params]("finance-report").
		WithShort("Print a finance report for one user").
		WithLong("Prints income, expenses and balance, the expense breakdown by category, credit card usage and the upcoming recurring transactions of a user over a date range. The report can also be saved as an xlsx workbook. Subcommands record and change transactions and manage categories and cards.").
		WithSubCmds(subCommands()...).
		WithRunFunc(func(params *Params) {
			if err := run(params); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}).
		Run()
}

func run(params *Params) error {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentReport)
	cfg := cli.LoadAndValidateConfig(logger)

	from, to, err := resolveRange(params.From, params.To, time.Now())
	if err != nil {
		return err
	}
	scope := core.Scope{TenantID: params.Tenant, UserID: params.User}
	if scope.TenantID == "" {
		scope.TenantID = cfg.DefaultTenantID
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res := cli.InitBackend(ctx, logger, cfg)
	defer res.Close()
	svc := cli.InitServices(logger, cfg, res.Backend, nil)
	defer svc.Close()

	builder := report.Builder{
		Transactions: svc.Transactions,
		Summaries:    svc.Summary,
		Recurring:    services.NewRecurringProcessor(res.Backend, svc.Transactions, cfg.RecurringMaxCatchUp),
		Catalog:      svc.Catalog,
	}
	r, err := builder.Build(ctx, scope, from, to, params.Upcoming)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}

	fmt.Printf("Loaded %d transactions\n\n", len(r.Transactions))
	report.PrintSummary(os.Stdout, r)
	fmt.Println()
	report.PrintCategories(os.Stdout, r)
	fmt.Println()
	report.PrintCreditCards(os.Stdout, r)
	if params.Upcoming > 0 {
		fmt.Println()
		report.PrintUpcoming(os.Stdout, r)
	}

	if params.Xlsx != "" {
		if err := report.SaveWorkbook(params.Xlsx, r); err != nil {
			return err
		}
		fmt.Printf("\nWorkbook written to %s\n", params.Xlsx)
	}
	return nil
}

// resolveRange parses the from/to flags. An empty from means the first day
// of the current month and an empty to the last day of the month of from.
func resolveRange(fromFlag, toFlag string, now time.Time) (core.Date, core.Date, error) {
	from, _ := core.MonthRange(core.DateOf(now))
	if fromFlag != "" {
		d, err := core.ParseDate(fromFlag)
		if err != nil {
			return core.Date{}, core.Date{}, fmt.Errorf("--from: %w", err)
		}
		from = d
	}
	_, to := core.MonthRange(from)
	if toFlag != "" {
		d, err := core.ParseDate(toFlag)
		if err != nil {
			return core.Date{}, core.Date{}, fmt.Errorf("--to: %w", err)
		}
		to = d
	}
	if to.Before(from) {
		return core.Date{}, core.Date{}, fmt.Errorf("--to %s is before --from %s", to, from)
	}
	return from, to, nil
}
