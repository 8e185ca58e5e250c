package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-erp/core"
	"github.com/trezcool/masomo-erp/core/marks"
)

func (cli *commandLine) rollup(filter marks.BlueprintFilter, notify bool) error {
	if notify && len(cli.conf.ReportRecipients) == 0 {
		return errNoRecipients
	}

	report, err := cli.svc.RollupInternals(context.Background(), filter)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprint(cli.out, report.Summary())

	if notify {
		msg := &core.EmailMessage{
			To:          cli.conf.ReportRecipients,
			Subject:     fmt.Sprintf("Internal marks rollup: %d saved, %d failed", report.Succeeded(), report.Failed()),
			TextContent: report.Summary(),
		}
		if err = cli.mailSvc.SendMessages(msg); err != nil {
			return errors.Wrap(err, "sending rollup summary")
		}
	}

	if n := report.Failed(); n > 0 {
		return errors.Wrapf(errPartialFailure, "%d failure(s)", n)
	}
	return nil
}

func (cli *commandLine) rollupComponents(subjectID string) error {
	report, err := cli.svc.RollupComponents(context.Background(), subjectID)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "Components %s (subject %s): %d saved, %d failed\n",
		report.RunID, report.SubjectID, report.Succeeded(), report.Failed())
	for _, it := range report.Students {
		if !it.OK() {
			_, _ = fmt.Fprintf(cli.out, "    * %s: %v\n", it.Key, it.Err)
		}
	}

	if n := report.Failed(); n > 0 {
		return errors.Wrapf(errPartialFailure, "%d failure(s)", n)
	}
	return nil
}
