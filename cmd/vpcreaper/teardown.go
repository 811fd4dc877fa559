/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwagner5/vpcreaper/pkg/catalog"
	"github.com/bwagner5/vpcreaper/pkg/logging"
	"github.com/bwagner5/vpcreaper/pkg/plans"
	"github.com/bwagner5/vpcreaper/pkg/pretty"
	"github.com/bwagner5/vpcreaper/pkg/reaper"
	"github.com/bwagner5/vpcreaper/pkg/utils/tagutils"
	"github.com/charmbracelet/huh"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var errIncomplete = errors.New("teardown finished with permanent failures, see the report for the remaining resources")

type TeardownOptions struct {
	DryRun      bool
	Force       bool
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	MaxBackoff  time.Duration `yaml:"maxBackoff"`
	WaitTimeout time.Duration `yaml:"waitTimeout"`
	Concurrency int           `yaml:"concurrency"`
}

type PlanUI struct {
	Wave string `table:"Wave"`
	Kind string `table:"Kind"`
	ID   string `table:"ID"`
	Name string `table:"Name,wide"`
}

type ReportUI struct {
	Kind          string `table:"Kind"`
	Deleted       string `table:"Deleted"`
	AlreadyAbsent string `table:"Already-Gone"`
	Failed        string `table:"Failed"`
	FailedIDs     string `table:"Failed-IDs,wide"`
}

var (
	teardownOptions = TeardownOptions{}
	cmdTeardown     = &cobra.Command{
		Use:   "teardown <vpc-id | selector>",
		Short: "teardown",
		Long: `Tear down a VPC and every resource that transitively depends on it.
The root can be given as a vpc id or a tag selector, e.g. 'tag:Name=workshop'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logging.ToContext(cmd.Context(), logging.New(globalOpts.Verbose))
			return teardown(ctx, args[0], teardownOptions, globalOpts)
		},
	}
)

func init() {
	rootCmd.AddCommand(cmdTeardown)
	cmdTeardown.Flags().BoolVarP(&teardownOptions.DryRun, "dry-run", "d", false, "Will NOT delete anything, only print the teardown plan")
	cmdTeardown.Flags().BoolVar(&teardownOptions.Force, "force", false, "Don't ask, just do it!")
	cmdTeardown.Flags().IntVar(&teardownOptions.MaxAttempts, "max-attempts", 0, "Max delete attempts per resource")
	cmdTeardown.Flags().DurationVar(&teardownOptions.BaseBackoff, "base-backoff", 0, "Delay before the first retry, doubled each retry")
	cmdTeardown.Flags().DurationVar(&teardownOptions.MaxBackoff, "max-backoff", 0, "Cap on the retry backoff")
	cmdTeardown.Flags().DurationVar(&teardownOptions.WaitTimeout, "wait-timeout", 0, "Max time to wait for asynchronous deletions (NAT Gateways, Load Balancers) to finish")
	cmdTeardown.Flags().IntVar(&teardownOptions.Concurrency, "concurrency", 0, "Number of concurrent deletions within a wave")
}

func teardown(ctx context.Context, root string, teardownOptions TeardownOptions, globalOpts GlobalOptions) error {
	teardownOptions, err := ParseConfig(globalOpts, teardownOptions)
	if err != nil {
		return err
	}
	awsCfg, err := AWSConfig(ctx, globalOpts)
	if err != nil {
		return err
	}
	vpcReaper := reaper.New(awsCfg, reaper.Options{
		MaxAttempts: teardownOptions.MaxAttempts,
		BaseBackoff: teardownOptions.BaseBackoff,
		MaxBackoff:  teardownOptions.MaxBackoff,
		WaitTimeout: teardownOptions.WaitTimeout,
		Concurrency: teardownOptions.Concurrency,
	})

	vpcID := root
	if !strings.HasPrefix(root, "vpc-") {
		rootRef, err := vpcReaper.ResolveRoot(ctx, root)
		if err != nil {
			return err
		}
		vpcID = rootRef.ID
	}

	plan, err := vpcReaper.Plan(ctx, vpcID)
	if err != nil {
		return err
	}
	if plan.RootAbsent() {
		fmt.Println("Nothing to tear down")
		return nil
	}

	if teardownOptions.DryRun {
		printPlan(plan, globalOpts)
		return nil
	}
	if !teardownOptions.Force {
		confirmed := false
		form := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Tear down %s and %d dependent resources?", plan.Spec.Root.ID, plan.RefCount())).
				Value(&confirmed),
		))
		if err := form.Run(); err != nil {
			return err
		}
		if !confirmed {
			fmt.Println("Aborted")
			return nil
		}
	}

	report, err := vpcReaper.Teardown(ctx, plan)
	if err != nil {
		return err
	}
	printReport(report, globalOpts)
	if report.Failed() {
		return errIncomplete
	}
	fmt.Printf("Tore down %s\n", plan.Spec.Root.ID)
	return nil
}

func printPlan(plan plans.TeardownPlan, globalOpts GlobalOptions) {
	planUI := lo.FlatMap(plan.Spec.Waves, func(wave plans.Wave, _ int) []PlanUI {
		return lo.Map(wave.Refs, func(ref catalog.ResourceRef, _ int) PlanUI {
			return PlanUI{
				Wave: strconv.Itoa(wave.Number),
				Kind: string(ref.Kind),
				ID:   ref.ID,
				Name: tagutils.Name(ref.Tags),
			}
		})
	})
	planUI = append(planUI, PlanUI{
		Wave: "final",
		Kind: string(catalog.Vpc),
		ID:   plan.Spec.Root.ID,
		Name: tagutils.Name(plan.Spec.Root.Tags),
	})
	switch globalOpts.Output {
	case OutputJSON:
		fmt.Println(pretty.EncodeJSON(planUI))
	case OutputYAML:
		fmt.Println(pretty.EncodeYAML(planUI))
	case OutputTableShort:
		fmt.Println(pretty.Table(planUI, false))
	case OutputTableWide:
		fmt.Println(pretty.Table(planUI, true))
	}
}

func printReport(report *plans.TeardownReport, globalOpts GlobalOptions) {
	reportUI := lo.FilterMap(catalog.Entries(), func(entry catalog.Entry, _ int) (ReportUI, bool) {
		summary, ok := report.Kinds[entry.Kind]
		if !ok {
			return ReportUI{}, false
		}
		return ReportUI{
			Kind:          string(entry.Kind),
			Deleted:       strconv.Itoa(summary.Success),
			AlreadyAbsent: strconv.Itoa(summary.AlreadyAbsent),
			Failed:        strconv.Itoa(summary.PermanentFailure),
			FailedIDs:     strings.Join(summary.FailedIDs, " "),
		}, true
	})
	rootRow := ReportUI{Kind: string(catalog.Vpc)}
	switch report.Root {
	case plans.OutcomeSuccess:
		rootRow.Deleted = "1"
	case plans.OutcomeAlreadyAbsent:
		rootRow.AlreadyAbsent = "1"
	case plans.OutcomePermanentFailure:
		rootRow.Failed = "1"
	}
	reportUI = append(reportUI, rootRow)
	switch globalOpts.Output {
	case OutputJSON:
		fmt.Println(pretty.EncodeJSON(reportUI))
	case OutputYAML:
		fmt.Println(pretty.EncodeYAML(reportUI))
	case OutputTableShort:
		fmt.Println(pretty.Table(reportUI, false))
	case OutputTableWide:
		fmt.Println(pretty.Table(reportUI, true))
	}
	if report.RootErr != nil {
		fmt.Println(report.RootErr)
	}
}
