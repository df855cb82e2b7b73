package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/jaclang/jtype/config"
	"github.com/jaclang/jtype/diag"
	"github.com/jaclang/jtype/lexer"
	"github.com/jaclang/jtype/parser"
	"github.com/jaclang/jtype/typecheck"
	"github.com/jaclang/jtype/types"
)

// build is a crawled and, when it parsed cleanly, checked program.
type build struct {
	importer *parser.Importer
	checker  *typecheck.Checker
	sink     *diag.Sink
	checked  bool
}

func registry(settings config.Settings) (*types.Registry, error) {
	if settings.BuiltinsPath == "" {
		return types.Default()
	}
	data, err := os.ReadFile(settings.BuiltinsPath)
	if err != nil {
		return nil, err
	}
	reg := types.NewRegistry()
	if err := reg.LoadBuiltins(data); err != nil {
		return nil, fmt.Errorf("%s: %w", settings.BuiltinsPath, err)
	}
	return reg, nil
}

// load crawls file and its imports from root and checks them. Syntax and
// import errors become diagnostics and the type passes are skipped.
func load(root fs.FS, file string, settings config.Settings, logOut io.Writer) (*build, error) {
	reg, err := registry(settings)
	if err != nil {
		return nil, err
	}
	b := &build{importer: parser.NewImporter(root), sink: &diag.Sink{}}
	b.checker = typecheck.NewChecker(b.importer, reg,
		typecheck.WithSink(b.sink),
		typecheck.WithSettings(settings),
		typecheck.WithLogOutput(logOut),
	)
	if err := b.importer.ImportCrawl(file); err != nil {
		report(b.sink, file, err)
		return b, nil
	}
	if err := b.checker.ProcessBuild(); err != nil {
		return nil, err
	}
	b.checked = true
	return b, nil
}

// report turns the errors of an import crawl into diagnostics.
func report(sink *diag.Sink, file string, err error) {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			report(sink, file, e)
		}
		return
	}
	var perr *parser.Error
	if errors.As(err, &perr) {
		sink.AddError(perr.Filename, perr.Span, &diag.JT0001, "%s", perr.Msg)
		return
	}
	sink.AddError(file, lexer.Span{}, &diag.JT0002, "%v", err)
}
