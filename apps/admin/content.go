package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/somo/core/content"
)

// importDocument creates a whole Document tree from a content.NewDocument JSON.
func (cli *commandLine) importDocument(kind content.Kind, path string) error {
	var r io.Reader = cli.in
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrap(err, "opening import file")
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var data content.NewDocument
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return errors.Wrap(err, "decoding document")
	}
	if err := data.Validate(validate); err != nil {
		return err
	}

	doc, err := cli.contentSvc.Create(context.Background(), kind, data)
	if err != nil {
		return err
	}
	return cli.print(doc)
}

func (cli *commandLine) exportDocument(kind content.Kind, id string) error {
	doc, err := cli.contentSvc.GetByID(context.Background(), kind, id)
	if err != nil {
		return err
	}
	return cli.print(doc)
}

func (cli *commandLine) print(doc content.Document) error {
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(doc), "encoding document")
}
