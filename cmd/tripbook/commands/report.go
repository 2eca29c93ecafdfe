package commands

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"
	"tripbook-backend/lib/serviceutil"
	"tripbook-backend/services/trips"
	"tripbook-backend/services/trips/db"
	"tripbook-backend/services/trips/scraper"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	whatdidType      *string
	tripstatusUpdate *bool
)

func init() {
	whatdidType = whatdidCmd.Flags().String("type", "", "Only list activities of this type, e.g. 'day hiking'.")
	tripstatusUpdate = tripstatusCmd.Flags().Bool("update", false, "Re-scrape the matching activity pages before printing.")
	rootCmd.AddCommand(whowithCmd)
	rootCmd.AddCommand(whatdidCmd)
	rootCmd.AddCommand(diddoCmd)
	rootCmd.AddCommand(tripstatusCmd)
}

func openReports(ctx context.Context) (trips.Reports, *sql.DB) {
	cfg := loadConfig(ctx)
	database, err := db.OpenDB(cfg.DatabaseUrl)
	if err != nil {
		serviceutil.Fatal("failed to open db", err)
	}
	return trips.NewReports(database), database
}

// resolvePerson turns a profile url or exact full name into one person.
// Ambiguous names pick the first match and say so.
func resolvePerson(ctx context.Context, reports trips.Reports, key string) db.Person {
	people, err := reports.FindPeople(ctx, key)
	if err != nil {
		serviceutil.Fatal("failed to look up person", err)
	}
	if len(people) == 0 {
		fmt.Fprintf(os.Stderr, "no person found for %q\n", key)
		os.Exit(1)
	}
	if len(people) > 1 {
		slog.Warn("name matches multiple people, using the first",
			"name", key, "matches", len(people))
	}
	return people[0]
}

func formatDay(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("Jan 2, 2006")
}

func renderHistory(rows []db.PersonActivityRow) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Activity", "Start", "End", "Role", "Status", "Result"})

	for _, row := range rows {
		result := row.Result
		if result == "" {
			result = row.Activity.Result
		}
		t.AppendRow(table.Row{
			row.Activity.Name,
			formatDay(row.Activity.DateStart),
			formatDay(row.Activity.DateEnd),
			row.Role,
			row.Activity.Status,
			result,
		})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}

var whowithCmd = &cobra.Command{
	Use:   "whowith <person> <date>",
	Short: "Prints who shared the person's trips on a date, with shared-trip history.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		day, err := time.Parse("2006-01-02", args[1])
		if err != nil {
			serviceutil.Fatal("failed to parse date, expected YYYY-MM-DD", err)
		}

		reports, database := openReports(cmd.Context())
		defer database.Close()

		person := resolvePerson(cmd.Context(), reports, args[0])
		rows, err := reports.ActivitiesOn(cmd.Context(), person.ID, day)
		if err != nil {
			serviceutil.Fatal("failed to list activities", err)
		}
		if len(rows) == 0 {
			fmt.Printf("%s has no activity on %s\n", person.FullName, args[1])
			return
		}

		companions, err := reports.Companions(cmd.Context(), person.ID)
		if err != nil {
			serviceutil.Fatal("failed to list companions", err)
		}
		shared := map[int64]int64{}
		for _, c := range companions {
			shared[c.Person.ID] = c.SharedTrip
		}

		for _, row := range rows {
			fmt.Printf("%s  %s - %s\n", row.Activity.Name,
				formatDay(row.Activity.DateStart), formatDay(row.Activity.DateEnd))

			roster, err := reports.Roster(cmd.Context(), row.Activity.ID)
			if err != nil {
				serviceutil.Fatal("failed to load roster", err)
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Name", "Role", "Shared Trips", "Profile"})
			for _, member := range roster {
				if member.Person.ID == person.ID {
					continue
				}
				t.AppendRow(table.Row{
					member.Person.FullName, member.Role,
					shared[member.Person.ID], member.Person.ProfileUrl,
				})
			}
			t.SetStyle(table.StyleRounded)
			t.Render()
		}
	},
}

var whatdidCmd = &cobra.Command{
	Use:   "whatdid <person> [--type <activity type>]",
	Short: "Prints a person's trip history, newest first.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reports, database := openReports(cmd.Context())
		defer database.Close()

		person := resolvePerson(cmd.Context(), reports, args[0])
		rows, err := reports.History(cmd.Context(), person.ID, *whatdidType)
		if err != nil {
			serviceutil.Fatal("failed to list activities", err)
		}
		renderHistory(rows)
	},
}

var diddoCmd = &cobra.Command{
	Use:   "diddo <person> <activity name>",
	Short: "Prints a person's activities whose name contains the given text.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		reports, database := openReports(cmd.Context())
		defer database.Close()

		person := resolvePerson(cmd.Context(), reports, args[0])
		rows, err := reports.DidDo(cmd.Context(), person.ID, args[1])
		if err != nil {
			serviceutil.Fatal("failed to search activities", err)
		}
		renderHistory(rows)
	},
}

var tripstatusCmd = &cobra.Command{
	Use:   "tripstatus <activity url or name> [--update]",
	Short: "Prints an activity's stored status and roster, optionally re-scraping it first.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := loadConfig(ctx)
		database, err := db.OpenDB(cfg.DatabaseUrl)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer database.Close()
		reports := trips.NewReports(database)

		matches, err := reports.ActivityStatus(ctx, args[0])
		if err != nil {
			serviceutil.Fatal("failed to look up activity", err)
		}
		if len(matches) == 0 {
			fmt.Fprintf(os.Stderr, "no activity found for %q\n", args[0])
			os.Exit(1)
		}

		if *tripstatusUpdate {
			session := openSession(cfg)
			defer session.Close()

			var urls []string
			for _, match := range matches {
				urls = append(urls, match.Activity.ActivityUrl)
			}
			summary, err := scraper.New(scraper.Options{
				Session:    session,
				Database:   database,
				Delay:      cfg.ScrapeDelay,
				Activities: urls,
			}).Run(ctx)
			if err != nil {
				serviceutil.Fatal("failed to update activities", err)
			}
			for _, unit := range summary.Failed() {
				slog.Warn("unit failed", "url", unit.Url, "state", unit.State, "err", unit.Err)
			}

			matches, err = reports.ActivityStatus(ctx, args[0])
			if err != nil {
				serviceutil.Fatal("failed to look up activity", err)
			}
		}

		for _, match := range matches {
			a := match.Activity
			fmt.Printf("%s\n  %s - %s  status=%s result=%q\n  %s\n",
				a.Name, formatDay(a.DateStart), formatDay(a.DateEnd),
				a.Status, a.Result, a.ActivityUrl)

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Name", "Role", "Registration", "Result"})
			for _, row := range match.Roster {
				t.AppendRow(table.Row{
					row.Person.FullName, row.Role, row.Registration, row.Result,
				})
			}
			t.SetStyle(table.StyleRounded)
			t.Render()
		}
	},
}
