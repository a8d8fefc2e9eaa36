// Garnet CLI - boots a runtime from garnet.toml and inspects or serves it
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/garnet/manifest"
	"github.com/chazu/garnet/server"
	"github.com/chazu/garnet/vm"
	"github.com/chazu/garnet/vm/image"
)

func main() {
	dir := flag.String("C", ".", "Directory to search for garnet.toml")
	verbose := flag.Bool("v", false, "Verbose output")
	mainEntry := flag.String("m", "", "Send a message and print the result (e.g. 'Object.name' or 'main.inspect')")
	dumpImage := flag.String("dump-image", "", "Write the booted class graph to an image file")
	saveLabel := flag.String("save", "", "Store the booted class graph under a label")
	listSnapshots := flag.Bool("list", false, "List stored snapshots")
	storePath := flag.String("store", "", "Snapshot store path (overrides [image].store)")
	serveMode := flag.Bool("serve", false, "Start the inspection server (gRPC + Connect HTTP/JSON)")
	addr := flag.String("addr", "", "Server address (overrides [server].addr)")
	lspMode := flag.Bool("lsp", false, "Run the language server on stdio")
	query := flag.String("query", "", "Query a running inspection server at host:port")
	className := flag.String("class", "", "Class to describe (used with --query)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: garnet [options] [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Boots the Garnet runtime configured by garnet.toml.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  garnet -m Object.ancestors          # Print Object's ancestors\n")
		fmt.Fprintf(os.Stderr, "  garnet --dump-image out.grnt        # Write an image file\n")
		fmt.Fprintf(os.Stderr, "  garnet --save baseline --list       # Store and list snapshots\n")
		fmt.Fprintf(os.Stderr, "  garnet --serve --addr :8080         # Start inspection server\n")
		fmt.Fprintf(os.Stderr, "  garnet --query localhost:4567 --class Object\n")
		fmt.Fprintf(os.Stderr, "  garnet --lsp                        # Editor support on stdio\n")
	}
	flag.Parse()

	m, err := loadManifest(*dir)
	if err != nil {
		fatalf("%v", err)
	}

	verbosity := m.Log.Verbosity
	if *verbose && verbosity < 1 {
		verbosity = 1
	}
	commonlog.Configure(verbosity, m.LogFile())
	log := commonlog.GetLogger("garnet")

	if *query != "" {
		if err := runQuery(*query, *className); err != nil {
			fatalf("%v", err)
		}
		return
	}

	opts, err := m.ToOptions()
	if err != nil {
		fatalf("%v", err)
	}
	if args := flag.Args(); len(args) > 0 {
		p := m.Platform()
		p.Argv = args
		opts = append(opts, vm.WithPlatform(p))
	}
	v, err := vm.NewVM(opts...)
	if err != nil {
		fatalf("boot: %v", err)
	}
	log.Infof("booted %s %s on %s", v.Platform().Engine, v.Platform().Version, v.Platform().Platform)

	if *lspMode {
		if err := server.NewLSP(v).Run(); err != nil {
			fatalf("lsp: %v", err)
		}
		return
	}

	code := 0
	if err := run(v, m, runFlags{
		mainEntry: *mainEntry,
		dumpImage: *dumpImage,
		saveLabel: *saveLabel,
		list:      *listSnapshots,
		storePath: *storePath,
		serve:     *serveMode,
		addr:      *addr,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		code = 1
	}

	if err := v.RunExitProcs(); err != nil {
		fmt.Fprintf(os.Stderr, "Error in exit proc: %v\n", err)
		code = 1
	}
	os.Exit(code)
}

type runFlags struct {
	mainEntry string
	dumpImage string
	saveLabel string
	list      bool
	storePath string
	serve     bool
	addr      string
}

func run(v *vm.VM, m *manifest.Manifest, f runFlags) error {
	if f.mainEntry != "" {
		result, err := runMain(v, f.mainEntry)
		if err != nil {
			return err
		}
		fmt.Println(result)
	}

	if f.dumpImage == "" && m.Image.Output != "" && f.mainEntry == "" && !f.serve {
		f.dumpImage = m.Resolve(m.Image.Output)
	}
	if f.dumpImage != "" {
		if err := image.Save(v, f.dumpImage); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", f.dumpImage)
	}

	var store *image.Store
	if f.saveLabel != "" || f.list || f.serve {
		path := f.storePath
		if path == "" {
			path = m.StorePath()
		}
		s, err := image.OpenStore(path)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	}

	if f.saveLabel != "" {
		if err := store.Put(context.Background(), f.saveLabel, v.Describe()); err != nil {
			return err
		}
		fmt.Printf("Saved snapshot %q\n", f.saveLabel)
	}

	if f.list {
		entries, err := store.List(context.Background())
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%-20s %s %8d bytes\n", e.Label, e.CreatedAt.Format(time.RFC3339), e.Size)
		}
	}

	if f.serve {
		addr := f.addr
		if addr == "" {
			addr = m.Server.Addr
		}
		return serve(v, store, addr)
	}
	return nil
}

// runMain sends "Receiver.method" (or "method" to main) with no arguments.
func runMain(v *vm.VM, entry string) (string, error) {
	recvPath, method := "main", entry
	if i := strings.LastIndex(entry, "."); i >= 0 {
		recvPath, method = entry[:i], entry[i+1:]
	}

	var recv vm.Value = v.TopSelf
	if recvPath != "main" {
		c, err := v.ConstGetPath(recvPath)
		if err != nil {
			return "", err
		}
		recv = c
	}

	v.InstallMethodMissing(v.BasicObjectClass, method)
	result, err := v.Run(func() (vm.Value, error) {
		return v.Send(recv, method)
	})
	if err != nil {
		return "", err
	}
	return v.Inspect(result), nil
}

func serve(v *vm.VM, store *image.Store, addr string) error {
	srv := server.New(v, server.WithStore(store))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		srv.Stop()
	}()

	return srv.ListenAndServe(addr)
}

func runQuery(target, className string) error {
	c, err := server.Dial(target)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if className == "" {
		names, err := c.ListClasses(ctx)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	}

	info, err := c.GetClass(ctx, className)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%-12s %v\n", k+":", info[k])
	}
	return nil
}

func loadManifest(dir string) (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return manifest.Default(dir), nil
	}
	return m, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
