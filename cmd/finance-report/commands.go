package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"finance/internal/cli"
	"finance/internal/core"
	applog "finance/internal/log"
	"finance/internal/report"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
)

type AddParams struct {
	User        string `descr:"User the transaction belongs to"`
	Tenant      string `descr:"Tenant ID, defaults to DEFAULT_TENANT_ID" optional:"true"`
	Description string `descr:"Description"`
	Amount      string `descr:"Amount, e.g. 12.50"`
	Type        string `descr:"Transaction type" default:"expense" alts:"income,expense" strict:"true"`
	Date        string `descr:"Transaction date (YYYY-MM-DD), defaults to today" optional:"true"`
	Category    string `descr:"Category ID" optional:"true"`
	Card        string `descr:"Credit card ID" optional:"true"`
	Recurring   string `descr:"Recurrence rule" optional:"true" alts:"fifth_business_day,day_15,last_day,custom" strict:"true"`
	Day         int    `descr:"Day of month of a custom rule" default:"0"`
	Months      int    `descr:"Number of occurrences, 0 for no end" default:"0"`
}

type UpdateParams struct {
	User        string `descr:"User the transaction belongs to"`
	Tenant      string `descr:"Tenant ID, defaults to DEFAULT_TENANT_ID" optional:"true"`
	ID          string `descr:"Transaction ID"`
	Description string `descr:"New description" optional:"true"`
	Amount      string `descr:"New amount" optional:"true"`
	Date        string `descr:"New transaction date (YYYY-MM-DD)" optional:"true"`
	Status      string `descr:"New status" optional:"true" alts:"pago,a_pagar,em_atraso" strict:"true"`
}

type DeleteParams struct {
	User   string `descr:"User the transaction belongs to"`
	Tenant string `descr:"Tenant ID, defaults to DEFAULT_TENANT_ID" optional:"true"`
	ID     string `descr:"Transaction ID"`
}

type CategoriesParams struct {
	User   string `descr:"User running the command, used for scoping"`
	Tenant string `descr:"Tenant ID, defaults to DEFAULT_TENANT_ID" optional:"true"`
	Add    string `descr:"Create a category with this name instead of listing" optional:"true"`
	Type   string `descr:"Type of the listed or created categories" optional:"true" alts:"income,expense" strict:"true"`
	Color  string `descr:"Color of the created category, e.g. #3b82f6" optional:"true"`
}

type CardsParams struct {
	User       string `descr:"User owning the cards"`
	Tenant     string `descr:"Tenant ID, defaults to DEFAULT_TENANT_ID" optional:"true"`
	From       string `descr:"First day of the range (YYYY-MM-DD), defaults to the start of the current month" optional:"true"`
	To         string `descr:"Last day of the range (YYYY-MM-DD), defaults to the end of the month of From" optional:"true"`
	Add        string `descr:"Create a card with this name instead of listing" optional:"true"`
	LastDigits string `descr:"Last four digits of the created card" optional:"true"`
	CardType   string `descr:"Type of the created card" default:"credit"`
	Limit      string `descr:"Credit limit of the created card" default:"0"`
	ClosingDay int    `descr:"Statement closing day of the created card" default:"1"`
	DueDay     int    `descr:"Payment due day of the created card" default:"10"`
}

// session is an opened backend plus services for one command run.
type session struct {
	ctx   context.Context
	scope core.Scope
	svc   *cli.Services
	close func()
}

func openSession(tenant, user string) (*session, error) {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentReport)
	cfg := cli.LoadAndValidateConfig(logger)

	scope := core.Scope{TenantID: tenant, UserID: user}
	if scope.TenantID == "" {
		scope.TenantID = cfg.DefaultTenantID
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	res := cli.InitBackend(ctx, logger, cfg)
	// writes done here reach the sync worker through the publisher
	amqpClient := cli.InitAMQP(logger, cfg)
	svc := cli.InitServices(logger, cfg, res.Backend, amqpClient)
	return &session{
		ctx:   ctx,
		scope: scope,
		svc:   svc,
		close: func() {
			svc.Close()
			if amqpClient != nil {
				if err := amqpClient.Close(); err != nil {
					logger.Warn("Failed to close AMQP client", "error", err)
				}
			}
			if err := res.Close(); err != nil {
				logger.Warn("Failed to close backend", "error", err)
			}
			cancel()
		},
	}, nil
}

// runIn opens a session, runs fn against it and exits non-zero on failure.
func runIn(tenant, user string, fn func(s *session) error) {
	s, err := openSession(tenant, user)
	if err == nil {
		err = fn(s)
		s.close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func subCommands() []boa.CmdIfc {
	return []boa.CmdIfc{
		boa.NewCmdT[AddParams]("add").
			WithShort("Record a transaction").
			WithRunFunc(func(p *AddParams) {
				runIn(p.Tenant, p.User, func(s *session) error {
					return addTransaction(s.ctx, s.svc, s.scope, p, time.Now(), os.Stdout)
				})
			}),
		boa.NewCmdT[UpdateParams]("update").
			WithShort("Change fields of a transaction").
			WithRunFunc(func(p *UpdateParams) {
				runIn(p.Tenant, p.User, func(s *session) error {
					return updateTransaction(s.ctx, s.svc, s.scope, p, os.Stdout)
				})
			}),
		boa.NewCmdT[DeleteParams]("delete").
			WithShort("Delete a transaction").
			WithRunFunc(func(p *DeleteParams) {
				runIn(p.Tenant, p.User, func(s *session) error {
					if err := s.svc.Transactions.Delete(s.ctx, s.scope, p.ID); err != nil {
						return err
					}
					fmt.Printf("Deleted %s\n", p.ID)
					return nil
				})
			}),
		boa.NewCmdT[CategoriesParams]("categories").
			WithShort("List or create categories").
			WithRunFunc(func(p *CategoriesParams) {
				runIn(p.Tenant, p.User, func(s *session) error {
					return categories(s.ctx, s.svc, s.scope, p, os.Stdout)
				})
			}),
		boa.NewCmdT[CardsParams]("cards").
			WithShort("List credit cards with their usage, or create one").
			WithRunFunc(func(p *CardsParams) {
				runIn(p.Tenant, p.User, func(s *session) error {
					return cards(s.ctx, s.svc, s.scope, p, time.Now(), os.Stdout)
				})
			}),
	}
}

func addTransaction(ctx context.Context, svc *cli.Services, scope core.Scope, p *AddParams, now time.Time, w io.Writer) error {
	amount, err := core.ParseAmount(p.Amount)
	if err != nil {
		return fmt.Errorf("--amount: %w", err)
	}
	date := core.DateOf(now)
	if p.Date != "" {
		if date, err = core.ParseDate(p.Date); err != nil {
			return fmt.Errorf("--date: %w", err)
		}
	}

	in := core.TransactionInput{
		Description:     p.Description,
		Amount:          amount,
		Type:            core.TransactionType(p.Type),
		TransactionDate: date,
		CategoryID:      optional(p.Category),
		CreditCardID:    optional(p.Card),
	}
	if p.Recurring != "" {
		rt, err := core.ParseRecurrenceType(p.Recurring)
		if err != nil {
			return fmt.Errorf("--recurring: %w", err)
		}
		in.IsRecurring = true
		in.RecurringType = &rt
		if p.Day > 0 {
			in.RecurringDay = &p.Day
		}
		if p.Months > 0 {
			in.RecurringMonths = &p.Months
		}
	}

	t, err := svc.Transactions.Create(ctx, scope, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Created %s: %s %s on %s\n", t.ID, t.Type, core.FormatAmount(t.Amount), t.TransactionDate)
	return nil
}

func updateTransaction(ctx context.Context, svc *cli.Services, scope core.Scope, p *UpdateParams, w io.Writer) error {
	var patch core.TransactionPatch
	if p.Description != "" {
		patch.Description = &p.Description
	}
	if p.Amount != "" {
		a, err := core.ParseAmount(p.Amount)
		if err != nil {
			return fmt.Errorf("--amount: %w", err)
		}
		patch.Amount = &a
	}
	if p.Date != "" {
		d, err := core.ParseDate(p.Date)
		if err != nil {
			return fmt.Errorf("--date: %w", err)
		}
		patch.TransactionDate = &d
	}
	if p.Status != "" {
		st := core.TransactionStatus(p.Status)
		patch.Status = &st
	}

	t, err := svc.Transactions.Update(ctx, scope, p.ID, patch)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Updated %s: %s %s on %s\n", t.ID, t.Description, core.FormatAmount(t.Amount), t.TransactionDate)
	return nil
}

func categories(ctx context.Context, svc *cli.Services, scope core.Scope, p *CategoriesParams, w io.Writer) error {
	var typ *core.TransactionType
	if p.Type != "" {
		t := core.TransactionType(p.Type)
		typ = &t
	}

	if name := strings.TrimSpace(p.Add); name != "" {
		if typ == nil {
			return fmt.Errorf("--type is required with --add")
		}
		c, err := svc.Catalog.CreateCategory(ctx, scope, core.CategoryInput{Name: name, Type: *typ, Color: p.Color})
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Created category %s (%s)\n", c.Name, c.ID)
		return nil
	}

	list, err := svc.Catalog.ListCategories(ctx, scope, typ)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(w, "No categories.")
		return nil
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "Name", "Type", "Color"})
	for _, c := range list {
		t.AppendRow(table.Row{c.ID, c.Name, string(c.Type), c.Color})
	}
	t.Render()
	return nil
}

func cards(ctx context.Context, svc *cli.Services, scope core.Scope, p *CardsParams, now time.Time, w io.Writer) error {
	if name := strings.TrimSpace(p.Add); name != "" {
		limit, err := decimal.NewFromString(p.Limit)
		if err != nil {
			return fmt.Errorf("--limit: %w", err)
		}
		c, err := svc.Catalog.CreateCreditCard(ctx, scope, core.CreditCardInput{
			Name:           name,
			LastFourDigits: p.LastDigits,
			CardType:       p.CardType,
			CreditLimit:    limit,
			ClosingDay:     p.ClosingDay,
			DueDay:         p.DueDay,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Created card %s (%s)\n", c.Name, c.ID)
		return nil
	}

	from, to, err := resolveRange(p.From, p.To, now)
	if err != nil {
		return err
	}
	b := report.Builder{Transactions: svc.Transactions, Summaries: svc.Summary, Catalog: svc.Catalog}
	r, err := b.Build(ctx, scope, from, to, 0)
	if err != nil {
		return fmt.Errorf("build card usage: %w", err)
	}
	fmt.Fprintf(w, "Credit cards of %s (%s to %s)\n", scope.UserID, from, to)
	report.PrintCreditCards(w, r)
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
