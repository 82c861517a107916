package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/trezcool/somo/core/content"
)

var (
	errHelp          = errors.New("help provided")
	errNoMigrationDB = errors.New("migrate needs the postgres database engine")
)

type commandLine struct {
	db         *sql.DB // nil unless the postgres engine is configured
	contentSvc *content.Service
	in         io.Reader
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Println("  import -kind KIND [-file FILE] - create a document (with its sections & lectures) from JSON")
	fmt.Println("  export -kind KIND -id ID - print a document as JSON")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	importCmd := flag.NewFlagSet("import", flag.ContinueOnError)
	importKind := importCmd.String("kind", "", "The document kind: curriculum, course or article.")
	importFile := importCmd.String("file", "", "The JSON file to import. Reads stdin when empty.")

	exportCmd := flag.NewFlagSet("export", flag.ContinueOnError)
	exportKind := exportCmd.String("kind", "", "The document kind: curriculum, course or article.")
	exportID := exportCmd.String("id", "", "The document id.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "import":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		kind, ok := content.ParseKind(*importKind)
		if !ok {
			importCmd.Usage()
			return errHelp
		}
		return cli.importDocument(kind, *importFile)
	case "export":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return err
		}
		kind, ok := content.ParseKind(*exportKind)
		if !ok || *exportID == "" {
			exportCmd.Usage()
			return errHelp
		}
		return cli.exportDocument(kind, *exportID)
	default:
		cli.printUsage()
		return errHelp
	}
}
