package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"clinic-portal/internal/auth"
	"clinic-portal/internal/config"
	"clinic-portal/internal/ical"
	"clinic-portal/internal/model"
	"clinic-portal/internal/platform"
	"clinic-portal/internal/schedule"
)

// withPlatform loads config and runs fn with a client bound to tok.
func withPlatform(tok string, fn func(ctx context.Context, cfg *config.Config, c *platform.Client) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	base, closePlatform, err := platformClient(cfg)
	if err != nil {
		return err
	}
	defer closePlatform()

	log := cliLogger(cfg)
	ctx, cancel := context.WithTimeout(log.WithContext(context.Background()), cfg.PlatformTimeout)
	defer cancel()
	if err := fn(ctx, cfg, base.WithToken(tok)); err != nil {
		log.Error().Err(err).Msg("command failed")
		return errors.New(platform.UserMessage(err, err.Error()))
	}
	return nil
}

func appointmentsCmd() *cobra.Command {
	var tok string
	cmd := &cobra.Command{
		Use:   "appointments",
		Short: "List a patient's upcoming and past appointments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlatform(tok, func(ctx context.Context, cfg *config.Config, c *platform.Client) error {
				loc, err := cfg.Location()
				if err != nil {
					return err
				}
				pid, err := c.PatientID(ctx)
				if err != nil {
					return err
				}
				appts, err := c.PatientAppointments(ctx, pid)
				if err != nil {
					return err
				}
				up, past := schedule.Classify(appts, time.Now().In(loc))
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				printAppointments(w, "UPCOMING", up)
				fmt.Fprintln(w)
				printAppointments(w, "PAST", past)
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&tok, "platform-token", os.Getenv("PLATFORM_TOKEN"), "patient's platform session token")
	return cmd
}

func printAppointments(w *tabwriter.Writer, heading string, appts []model.Appointment) {
	fmt.Fprintf(w, "%s (%d)\n", heading, len(appts))
	fmt.Fprintln(w, "ID\tDATE\tTIME\tDOCTOR\tSERVICE\tSTATUS")
	for _, a := range appts {
		doctor := a.DoctorName
		if doctor == "" {
			doctor = a.Doctor
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", a.ID, a.AppointmentDate, a.StartTime, doctor, a.Service, a.Status)
	}
}

func leavesCmd() *cobra.Command {
	var tok, doctor string
	var asICS bool
	cmd := &cobra.Command{
		Use:   "leaves",
		Short: "Show a doctor's leave, or export approved leave as iCalendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlatform(tok, func(ctx context.Context, cfg *config.Config, c *platform.Client) error {
				leaves, err := c.DoctorLeaves(ctx, doctor)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asICS {
					loc, err := cfg.Location()
					if err != nil {
						return err
					}
					feed := ical.Feed{Name: doctor + " - Leave", DeskURL: cfg.PlatformURL, Loc: loc}
					body, err := feed.Encode(schedule.LeaveEvents(leaves), time.Now())
					if err != nil {
						return err
					}
					_, err = fmt.Fprint(out, body)
					return err
				}
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tFROM\tTO\tREASON\tSTATUS")
				for _, l := range leaves {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", l.ID, l.FromDate, l.ToDate, l.Reason, l.Status)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&tok, "platform-token", os.Getenv("PLATFORM_TOKEN"), "doctor's platform session token")
	cmd.Flags().StringVar(&doctor, "doctor", "", "doctor id")
	cmd.Flags().BoolVar(&asICS, "ics", false, "write approved leave as iCalendar")
	cmd.MarkFlagRequired("doctor")
	return cmd
}

func tokenCmd() *cobra.Command {
	var c auth.Claims
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a portal token for a platform user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.Role != auth.RolePatient && c.Role != auth.RoleDoctor {
				return fmt.Errorf("role must be %q or %q", auth.RolePatient, auth.RoleDoctor)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tok, err := auth.MakeToken(c, cfg.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&c.UserID, "user", "", "platform user id")
	f.StringVar(&c.FullName, "name", "", "display name")
	f.StringVar(&c.Role, "role", auth.RolePatient, "patient or doctor")
	f.StringVar(&c.Doctor, "doctor", "", "doctor id, defaults to the user id")
	f.StringVar(&c.PlatformToken, "platform-token", "", "platform session token to forward")
	f.DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.MarkFlagRequired("user")
	return cmd
}
