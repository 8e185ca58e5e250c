package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-erp/core"
	"github.com/trezcool/masomo-erp/core/marks"
)

var (
	errHelp           = errors.New("help provided")
	errPartialFailure = errors.New("rollup finished with failures")
	errNoRecipients   = errors.New("no report recipients configured")
)

type commandLine struct {
	db      *sql.DB
	conf    *core.Config
	svc     *marks.Service
	mailSvc core.EmailService
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                                   - run a goose command (up, down, status, ...)")
	_, _ = fmt.Fprintln(cli.out, "  addblueprint -file PATH                                  - create a CIE blueprint from a JSON file")
	_, _ = fmt.Fprintln(cli.out, "  setmark -student ID -subquestion ID -mark N              - record a sub-question mark")
	_, _ = fmt.Fprintln(cli.out, "  setcomponent -student ID -subject ID -component C -attempt N -mark N")
	_, _ = fmt.Fprintln(cli.out, "                                                           - record an assignment, quiz or seminar mark")
	_, _ = fmt.Fprintln(cli.out, "  rollup [-subject ID] [-cie N] [-notify]                  - recompute the internal totals")
	_, _ = fmt.Fprintln(cli.out, "  components -subject ID                                   - recompute the component totals of a subject")
	_, _ = fmt.Fprintln(cli.out, "  report -subject ID [-cie N] [-xlsx PATH]                 - print (or export) the totals of a subject")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errHelp // the flag package already printed the problem
	}
	return nil
}

// check validates the parsed flags of a subcommand; the usage is printed on failure.
func check(fs *flag.FlagSet, checkers ...vala.Checker) error {
	if err := vala.BeginValidation().Validate(checkers...).Check(); err != nil {
		_, _ = fmt.Fprintln(fs.Output(), err)
		fs.Usage()
		return errHelp
	}
	return nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "addblueprint":
		cmd := cli.newFlagSet("addblueprint")
		file := cmd.String("file", "", "JSON file holding the blueprint: {subject_id, cie_no, sub_questions: [{question_no, label, max_marks}]}")
		if err := parse(cmd, args[2:]); err != nil {
			return err
		}
		if err := check(cmd, vala.StringNotEmpty(*file, "file")); err != nil {
			return err
		}
		return cli.addBlueprint(*file)

	case "setmark":
		cmd := cli.newFlagSet("setmark")
		student := cmd.String("student", "", "The student ID")
		subQuestion := cmd.String("subquestion", "", "The sub-question ID")
		mark := cmd.Float64("mark", 0, "The mark obtained")
		if err := parse(cmd, args[2:]); err != nil {
			return err
		}
		if err := check(cmd,
			vala.StringNotEmpty(*student, "student"),
			vala.StringNotEmpty(*subQuestion, "subquestion"),
		); err != nil {
			return err
		}
		return cli.setMark(*student, *subQuestion, *mark)

	case "setcomponent":
		cmd := cli.newFlagSet("setcomponent")
		student := cmd.String("student", "", "The student ID")
		subject := cmd.String("subject", "", "The subject ID")
		component := cmd.String("component", "", "One of: assignment, quiz, seminar")
		attempt := cmd.Int("attempt", 1, "The attempt number, starting at 1")
		mark := cmd.Float64("mark", 0, "The mark obtained")
		if err := parse(cmd, args[2:]); err != nil {
			return err
		}
		if err := check(cmd,
			vala.StringNotEmpty(*student, "student"),
			vala.StringNotEmpty(*subject, "subject"),
			vala.StringNotEmpty(*component, "component"),
		); err != nil {
			return err
		}
		return cli.setComponent(marks.NewComponentMark{
			StudentID: *student,
			SubjectID: *subject,
			Component: *component,
			Attempt:   *attempt,
			Mark:      *mark,
		})

	case "rollup":
		cmd := cli.newFlagSet("rollup")
		subject := cmd.String("subject", "", "Only roll up this subject")
		cie := cmd.Int("cie", 0, "Only roll up this CIE")
		notify := cmd.Bool("notify", false, "Email the run summary to the report recipients")
		if err := parse(cmd, args[2:]); err != nil {
			return err
		}
		return cli.rollup(marks.BlueprintFilter{SubjectID: core.CleanString(*subject), CIENo: *cie}, *notify)

	case "components":
		cmd := cli.newFlagSet("components")
		subject := cmd.String("subject", "", "The subject ID")
		if err := parse(cmd, args[2:]); err != nil {
			return err
		}
		if err := check(cmd, vala.StringNotEmpty(*subject, "subject")); err != nil {
			return err
		}
		return cli.rollupComponents(*subject)

	case "report":
		cmd := cli.newFlagSet("report")
		subject := cmd.String("subject", "", "The subject ID")
		cie := cmd.Int("cie", 0, "Only report this CIE")
		xlsx := cmd.String("xlsx", "", "Export the report to this .xlsx file instead of printing it")
		if err := parse(cmd, args[2:]); err != nil {
			return err
		}
		if err := check(cmd, vala.StringNotEmpty(*subject, "subject")); err != nil {
			return err
		}
		return cli.report(core.CleanString(*subject), *cie, *xlsx)

	default:
		cli.printUsage()
		return errHelp
	}
}
