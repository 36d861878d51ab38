package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/drug/druginfra"
	"github.com/Abraxas-365/drugcontent/pkg/enhancer"
	"github.com/Abraxas-365/drugcontent/pkg/jobx"
	"github.com/Abraxas-365/drugcontent/pkg/scanner"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|down]",
		Short: "Apply or roll back the drug_content schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := sqlx.Connect("postgres", cfg.DB.DSN())
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()

			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}
			switch direction {
			case "up":
				return druginfra.Migrate(db)
			case "down":
				return druginfra.MigrateDown(db)
			default:
				return fmt.Errorf("unknown direction %q (use up or down)", direction)
			}
		},
	}
	return cmd
}

func queueCmd() *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and administer job queues",
	}

	statsCmd := &cobra.Command{
		Use:   "stats [queue]",
		Short: "Show queue statistics",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(ctx context.Context, c *Container) error {
				if len(args) == 1 {
					st, err := c.Monitor.Stats(ctx, args[0])
					if err != nil {
						return err
					}
					return printJSON(cmd, st)
				}
				all, err := c.Monitor.AllStats(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, all)
			})
		},
	}

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Run the queue health check",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(ctx context.Context, c *Container) error {
				h := c.Monitor.Health(ctx)
				if err := printJSON(cmd, h); err != nil {
					return err
				}
				if !h.Healthy {
					return fmt.Errorf("queues unhealthy")
				}
				return nil
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list <queue>",
		Short: "List jobs in one state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, _ := cmd.Flags().GetString("state")
			limit, _ := cmd.Flags().GetInt("limit")
			return withContainer(cmd, func(ctx context.Context, c *Container) error {
				jobs, err := c.Monitor.ListJobs(ctx, args[0], jobx.State(state), limit)
				if err != nil {
					return err
				}
				return printJSON(cmd, jobs)
			})
		},
	}
	listCmd.Flags().String("state", string(jobx.StateFailed), "Job state (waiting, delayed, active, completed, failed)")
	listCmd.Flags().Int("limit", 50, "Maximum jobs to list")

	getCmd := &cobra.Command{
		Use:   "get <queue> <job-id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(ctx context.Context, c *Container) error {
				job, err := c.Monitor.GetJob(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd, job)
			})
		},
	}

	retryCmd := &cobra.Command{
		Use:   "retry <queue> <job-id>",
		Short: "Requeue a failed job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(ctx context.Context, c *Container) error {
				return c.Monitor.RetryJob(ctx, args[0], args[1])
			})
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <queue> <job-id>",
		Short: "Delete a job that is not running",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(ctx context.Context, c *Container) error {
				return c.Monitor.RemoveJob(ctx, args[0], args[1])
			})
		},
	}

	pauseCmd := &cobra.Command{
		Use:   "pause <queue>",
		Short: "Stop workers from claiming jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(ctx context.Context, c *Container) error {
				return c.Monitor.Pause(ctx, args[0])
			})
		},
	}

	resumeCmd := &cobra.Command{
		Use:   "resume <queue>",
		Short: "Let workers claim jobs again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(ctx context.Context, c *Container) error {
				return c.Monitor.Resume(ctx, args[0])
			})
		},
	}

	cleanCmd := &cobra.Command{
		Use:   "clean <queue>",
		Short: "Remove finished jobs older than a threshold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			olderThan, _ := cmd.Flags().GetDuration("older-than")
			state, _ := cmd.Flags().GetString("state")
			return withContainer(cmd, func(ctx context.Context, c *Container) error {
				n, err := c.Monitor.Clean(ctx, args[0], jobx.State(state), olderThan)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d %s jobs from %s\n", n, state, args[0])
				return nil
			})
		},
	}
	cleanCmd.Flags().Duration("older-than", 24*time.Hour, "Only remove jobs finished longer ago than this")
	cleanCmd.Flags().String("state", string(jobx.StateCompleted), "Terminal state to clean (completed or failed)")

	queueCmd.AddCommand(statsCmd, healthCmd, listCmd, getCmd, retryCmd, removeCmd, pauseCmd, resumeCmd, cleanCmd)
	return queueCmd
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "scan <missing|outdated>",
		Short:     "Run a content scan now",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(scanner.KindMissing), string(scanner.KindOutdated)},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(ctx context.Context, c *Container) error {
				res, err := c.Monitor.TriggerScan(ctx, scanner.Kind(args[0]))
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
}

func enqueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue <drug-id>...",
		Short: "Queue enhancement for specific drugs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, _ := cmd.Flags().GetBool("batch")
			processingType, _ := cmd.Flags().GetString("type")
			priority, _ := cmd.Flags().GetInt("priority")

			return withContainer(cmd, func(ctx context.Context, c *Container) error {
				if batch {
					res, err := c.Monitor.EnqueueBatch(ctx, args, processingType, "cli")
					if err != nil {
						return err
					}
					return printJSON(cmd, res)
				}

				jobType := enhancer.JobEnhance
				if processingType == enhancer.JobRefresh {
					jobType = enhancer.JobRefresh
				}
				for _, id := range args {
					job, err := enhancer.NewRecordJob(jobType, c.Config.Jobx.EnhancementQueue, enhancer.Payload{
						DrugID:         id,
						ProcessingType: processingType,
						Metadata:       map[string]any{"initiator": "cli"},
					}, priority, 0)
					if err != nil {
						return err
					}
					info, err := c.Jobs.Enqueue(ctx, job)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, info.ID)
				}
				return nil
			})
		},
	}
	cmd.Flags().Bool("batch", false, "Queue one staggered batch job per chunk instead of one job per drug")
	cmd.Flags().String("type", enhancer.JobEnhance, "Processing type (enhance or refresh)")
	cmd.Flags().Int("priority", jobx.PriorityHigh, "Job priority (1 low, 5 medium, 10 high)")
	return cmd
}

func rateLimitCmd() *cobra.Command {
	rl := &cobra.Command{
		Use:   "ratelimit",
		Short: "Inspect or reset the generation rate limit",
	}
	rl.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show the current window",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withContainer(cmd, func(ctx context.Context, c *Container) error {
					st, err := c.Monitor.RateLimitStatus(ctx)
					if err != nil {
						return err
					}
					return printJSON(cmd, st)
				})
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Clear the current window",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withContainer(cmd, func(ctx context.Context, c *Container) error {
					return c.Monitor.ResetRateLimit(ctx)
				})
			},
		},
	)
	return rl
}
