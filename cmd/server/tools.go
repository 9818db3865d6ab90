package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sekou/sekou/internal/repository"
	"github.com/sekou/sekou/pkg/capacity"
	"github.com/sekou/sekou/pkg/model"
	"github.com/sekou/sekou/pkg/stats"
)

func newResolveCmd(c *cli) *cobra.Command {
	var tenantCode, workerID, date, slot string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "解析作业员某天的剩余接单空间",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if tenantCode == "" {
				tenantCode = c.cfg.App.DefaultTenant
			}
			day, err := a.view.ParseDate(date)
			if err != nil {
				return err
			}
			wc, err := a.capacities.Get(ctx, tenantCode, workerID)
			if err != nil {
				return err
			}
			events, err := a.events.List(ctx, tenantCode, repository.DefaultListFilter().
				WithWorker(workerID).WithDateRange(date, date))
			if err != nil {
				return err
			}
			load, bySlot := a.analyzer().Load(events, workerID, day)

			out, err := json.MarshalIndent(capacity.CheckRoom(wc, day, slot, load, bySlot[slot]), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantCode, "tenant", "", "租户编码（默认使用配置中的默认租户）")
	cmd.Flags().StringVar(&workerID, "worker", "", "作业员ID")
	cmd.Flags().StringVar(&date, "date", "", "日期 YYYY-MM-DD")
	cmd.Flags().StringVar(&slot, "slot", "", "时间段ID（可选）")
	_ = cmd.MarkFlagRequired("worker")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func newReportCmd(c *cli) *cobra.Command {
	var tenantCode, from, to string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "输出负荷统计报告",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if tenantCode == "" {
				tenantCode = c.cfg.App.DefaultTenant
			}
			start, err := a.view.ParseDate(from)
			if err != nil {
				return err
			}
			end, err := a.view.ParseDate(to)
			if err != nil {
				return err
			}
			if end.Before(start) {
				return fmt.Errorf("结束日期 %s 早于开始日期 %s", to, from)
			}

			events, err := a.events.List(ctx, tenantCode, repository.DefaultListFilter().
				WithDateRange(start.Format(model.DateLayout), end.Format(model.DateLayout)))
			if err != nil {
				return err
			}
			caps, err := a.capacities.Map(ctx, tenantCode)
			if err != nil {
				return err
			}
			workers, err := a.workers.List(ctx, tenantCode)
			if err != nil {
				return err
			}

			report := a.analyzer().Analyze(events, caps, workers, start, end)
			if asJSON {
				out, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), stats.GenerateReport(report))
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantCode, "tenant", "", "租户编码（默认使用配置中的默认租户）")
	cmd.Flags().StringVar(&from, "from", "", "开始日期 YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "结束日期 YYYY-MM-DD")
	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
