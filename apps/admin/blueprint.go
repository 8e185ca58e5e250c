package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-erp/core/marks"
)

// addBlueprint creates a marks.Blueprint from a JSON file, then prints the generated sub-question IDs.
func (cli *commandLine) addBlueprint(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening blueprint file")
	}
	defer func() { _ = f.Close() }()

	var nb marks.NewBlueprint
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err = dec.Decode(&nb); err != nil {
		return errors.Wrap(err, "decoding blueprint file")
	}

	bp, err := cli.svc.CreateBlueprint(context.Background(), nb)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "created %s (max total %g)\n", bp, bp.MaxTotal())
	for _, sq := range bp.SubQuestions {
		_, _ = fmt.Fprintf(cli.out, "  %-16s Q%d  /%-6g %s\n", sq.Label, sq.QuestionNo.Int, sq.MaxMarks, sq.ID)
	}
	return nil
}
