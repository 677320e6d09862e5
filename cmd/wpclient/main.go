package main

// wpclient publishes a directory tree to a webpub server and inspects what
// is stored there.

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/pflag"

	"github.com/ndlib/webpub/bclientapi"
	"github.com/ndlib/webpub/entity"
	"github.com/ndlib/webpub/upload"
)

const usage = `
wpclient <flags> <command> <command arguments>

Possible commands:

    upload <source>    publish a directory, a file, or an s3: location
    get <path>         show the variants stored at a path
    sites              list the sites the token may see

`

// options holds the command line flags.
type options struct {
	server  string
	token   string
	site    string
	gzip    bool
	verbose bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string) error {
	var opts options
	flagSet := pflag.NewFlagSet("wpclient", pflag.ContinueOnError)
	flagSet.StringVar(&opts.server, "server", "http://localhost:14000", "webpub server to use")
	flagSet.StringVar(&opts.token, "token", os.Getenv("WEBPUB_TOKEN"), "API token (default $WEBPUB_TOKEN)")
	flagSet.StringVar(&opts.site, "site", "", "site to publish to (default the site of the token)")
	flagSet.BoolVar(&opts.gzip, "gzip", false, "also store gzip variants of compressible files")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "display more information")
	flagSet.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(argv); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	args := flagSet.Args()
	if len(args) == 0 {
		flagSet.Usage()
		return fmt.Errorf("no command given")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	conn := bclientapi.New(opts.server, opts.token, opts.site)
	switch args[0] {
	case "upload":
		if len(args) != 2 {
			return fmt.Errorf("Usage: wpclient <flags> upload <source>")
		}
		return doUpload(ctx, conn, opts, args[1])
	case "get":
		if len(args) != 2 {
			return fmt.Errorf("Usage: wpclient <flags> get <path>")
		}
		return doGet(ctx, conn, args[1])
	case "sites":
		return doSites(ctx, conn)
	}
	return fmt.Errorf("unknown command %q", args[0])
}

func doUpload(ctx context.Context, conn *bclientapi.Connection, opts options, source string) error {
	fsys, root, err := upload.ParseLocation(source)
	if err != nil {
		return err
	}
	m := &upload.Mapper{
		Site:    conn,
		Gzip:    opts.gzip,
		Verbose: opts.verbose,
	}
	return m.Upload(ctx, fsys, root)
}

func doGet(ctx context.Context, conn *bclientapi.Connection, path string) error {
	list, err := conn.Getter(path).Get(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return fmt.Errorf("%s: nothing stored", path)
	}
	for _, e := range list {
		printEntity(e)
	}
	return nil
}

func printEntity(e entity.Entity) {
	if e.IsRedirect() {
		fmt.Printf("%s\t%s\tredirect %s\n", e.MimeType, e.Coding(), e.RedirectTo)
		return
	}
	fmt.Printf("%s\t%s\t%d bytes\n", e.MimeType, e.Coding(), len(e.Body))
}

func doSites(ctx context.Context, conn *bclientapi.Connection) error {
	sites, err := conn.ListSites(ctx)
	if err != nil {
		return err
	}
	for _, s := range sites {
		fmt.Println(s)
	}
	return nil
}
