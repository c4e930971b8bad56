package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/app"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/logger"
)

func main() {
	var (
		seedAdmin    = flag.Bool("admin", true, "create the admin account if it does not exist")
		seedSlots    = flag.Bool("slots", true, "replace unbooked slots with a fresh horizon")
		patients     = flag.Int("patients", 0, "number of demo patient accounts to create")
		demoPassword = flag.String("demo-password", "Password!", "password shared by demo patients")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	log.Info("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}

	plan := steps{admin: *seedAdmin, slots: *seedSlots, patients: *patients, password: *demoPassword}
	err = run(ctx, a.Seeder, plan, os.Stdout, log)
	a.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
}

type seeder interface {
	EnsureAdmin(ctx context.Context) error
	ReseedSlots(ctx context.Context, now time.Time) (int, error)
	SeedDemoPatients(ctx context.Context, count int, password string) ([]string, error)
}

type steps struct {
	admin    bool
	slots    bool
	patients int
	password string
}

// run stops at the first failing step. Created demo emails go to out, one per line.
func run(ctx context.Context, s seeder, st steps, out io.Writer, log *zap.Logger) error {
	if st.admin {
		if err := s.EnsureAdmin(ctx); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	}
	if st.slots {
		n, err := s.ReseedSlots(ctx, time.Now())
		if err != nil {
			return fmt.Errorf("seed slots: %w", err)
		}
		log.Info("slots ready", zap.Int("inserted", n))
	}
	if st.patients > 0 {
		emails, err := s.SeedDemoPatients(ctx, st.patients, st.password)
		if err != nil {
			return fmt.Errorf("seed patients: %w", err)
		}
		for _, e := range emails {
			fmt.Fprintln(out, e)
		}
	}
	log.Info("seed complete")
	return nil
}
