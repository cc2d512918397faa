package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/proxypixel/metascrub/core"
	"github.com/proxypixel/metascrub/core/image"
	"github.com/proxypixel/metascrub/core/plan"
	"github.com/proxypixel/metascrub/core/tiff"
)

const usage = `Usage: metascrub <command> [flags] <file|dir>...

Commands:
  strip     remove metadata (all of it, or selected categories)
  edit      apply targeted deletions and replacements
  inspect   print the metadata without modifying anything

Run "metascrub <command> -h" for the flags of each command.`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "strip":
		err = runStrip(os.Args[2:])
	case "edit":
		err = runEdit(os.Args[2:])
	case "inspect":
		err = runInspect(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		core.PrintError(err.Error())
		os.Exit(1)
	}
}

// outputFlags is the write-destination surface shared by strip and edit.
type outputFlags struct {
	inplace   bool
	out       string
	keepEmpty bool
	jsonMode  bool
	verbose   bool
	jobs      int
}

func (o *outputFlags) register(fl *flag.FlagSet) {
	fl.BoolVar(&o.inplace, "inplace", false, "overwrite the input file instead of writing a _modified sibling")
	fl.StringVar(&o.out, "out", "", "output path (single input only)")
	fl.BoolVar(&o.keepEmpty, "keep-empty", false, "keep an empty metadata shell instead of dropping the segment")
	fl.BoolVar(&o.jsonMode, "json", false, "emit reports as JSON")
	fl.BoolVar(&o.verbose, "verbose", false, "include kept tags in reports")
	fl.IntVar(&o.jobs, "jobs", 4, "number of files processed concurrently")
}

// destination picks where the scrubbed bytes go. The default preserves the
// original and writes a _modified sibling.
func (o *outputFlags) destination(in string) string {
	if o.inplace {
		return in
	}
	if o.out != "" {
		return o.out
	}
	ext := filepath.Ext(in)
	return strings.TrimSuffix(in, ext) + "_modified" + ext
}

func runStrip(args []string) error {
	fl := flag.NewFlagSet("strip", flag.ExitOnError)
	var out outputFlags
	out.register(fl)
	only := fl.String("only", "", "comma-separated categories to strip (location,device,timestamp,software,description,other); default strips everything")
	if err := fl.Parse(args); err != nil {
		return err
	}

	p := plan.StripAllPlan()
	if *only != "" {
		p = &plan.Plan{}
		for _, cat := range strings.Split(*only, ",") {
			cat = strings.TrimSpace(cat)
			if !validCategory(cat) {
				return fmt.Errorf("unknown category %q", cat)
			}
			p.Rules = append(p.Rules, plan.Rule{Category: cat, Action: plan.Delete})
		}
	}
	return runBatch(fl.Args(), p, &out)
}

func runEdit(args []string) error {
	fl := flag.NewFlagSet("edit", flag.ExitOnError)
	var out outputFlags
	out.register(fl)
	planPath := fl.String("plan", "", "YAML edit plan file")
	var deletes, sets multiFlag
	fl.Var(&deletes, "delete", "tag name to delete (repeatable)")
	fl.Var(&sets, "set", "Name=value replacement, ASCII tags only (repeatable)")
	if err := fl.Parse(args); err != nil {
		return err
	}

	var p *plan.Plan
	if *planPath != "" {
		loaded, err := plan.Load(*planPath)
		if err != nil {
			return err
		}
		p = loaded
	} else {
		p = &plan.Plan{}
	}
	for _, name := range deletes {
		if _, _, ok := tiff.TagByName(name); !ok {
			return fmt.Errorf("unknown tag name %q", name)
		}
		p.Rules = append(p.Rules, plan.Rule{Name: name, Action: plan.Delete})
	}
	for _, kv := range sets {
		name, val, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("-set wants Name=value, got %q", kv)
		}
		if _, _, ok := tiff.TagByName(name); !ok {
			return fmt.Errorf("unknown tag name %q", name)
		}
		v := val
		p.Rules = append(p.Rules, plan.Rule{
			Name:   name,
			Action: plan.Replace,
			Value:  &plan.Value{ASCII: &v},
		})
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if !p.StripAll && len(p.Rules) == 0 {
		return errors.New("edit needs -plan, -delete, or -set")
	}
	return runBatch(fl.Args(), p, &out)
}

func runInspect(args []string) error {
	fl := flag.NewFlagSet("inspect", flag.ExitOnError)
	jsonMode := fl.Bool("json", false, "emit the tag tree as JSON")
	verbose := fl.Bool("verbose", false, "include sensitivity categories")
	if err := fl.Parse(args); err != nil {
		return err
	}
	paths, err := expandPaths(fl.Args())
	if err != nil {
		return err
	}

	printer := core.NewPrinter(*jsonMode, *verbose)
	var errs *multierror.Error
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		tree, kind, warnings, err := image.Inspect(data)
		switch {
		case errors.Is(err, core.ErrNoMetadata):
			printer.PrintInfo(fmt.Sprintf("%s: no metadata present", path))
			continue
		case err != nil:
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		printer.PrintTree(path, kind, tree)
		for _, w := range warnings {
			printer.PrintInfo("  warning: " + w)
		}
	}
	return errs.ErrorOrNil()
}

// runBatch scrubs every path through a bounded worker pool. Unsupported
// formats are skipped without failing the run; parse and IO errors are
// collected and make the exit code nonzero.
func runBatch(args []string, p *plan.Plan, out *outputFlags) error {
	paths, err := expandPaths(args)
	if err != nil {
		return err
	}
	if out.out != "" && len(paths) > 1 {
		return errors.New("-out needs a single input file")
	}
	jobs := out.jobs
	if jobs < 1 {
		jobs = 1
	}

	printer := core.NewPrinter(out.jsonMode, out.verbose)
	var (
		mu   sync.Mutex
		errs *multierror.Error
		wg   sync.WaitGroup
	)
	work := make(chan string)
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range work {
				report, err := scrubFile(path, p, out)
				mu.Lock()
				switch {
				case errors.Is(err, core.ErrUnsupportedFormat):
					printer.PrintInfo(fmt.Sprintf("skip %s: %v", path, err))
				case err != nil:
					errs = multierror.Append(errs, fmt.Errorf("%s: %w", path, err))
					core.PrintError(path + ": " + err.Error())
				default:
					printer.PrintReport(report)
				}
				mu.Unlock()
			}
		}()
	}
	for _, path := range paths {
		work <- path
	}
	close(work)
	wg.Wait()
	return errs.ErrorOrNil()
}

func scrubFile(path string, p *plan.Plan, out *outputFlags) (*core.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	res, err := image.Scrub(data, p, core.Options{KeepEmptyShell: out.keepEmpty})
	if err != nil {
		return nil, err
	}
	res.Report.Path = path
	if res.Output == nil {
		return &res.Report, nil
	}

	dest := out.destination(path)
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode()
	}
	if err := os.WriteFile(dest, res.Output, mode); err != nil {
		return nil, err
	}
	return &res.Report, nil
}

// expandPaths flattens file and directory arguments into a file list,
// keeping only extensions the pipeline can open.
func expandPaths(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, errors.New("no input files")
	}
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && supportedExt(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if len(paths) == 0 {
		return nil, errors.New("no image files found")
	}
	return paths, nil
}

func supportedExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".tif", ".tiff":
		return true
	}
	return false
}

func validCategory(cat string) bool {
	switch tiff.Category(cat) {
	case tiff.CatLocation, tiff.CatDevice, tiff.CatTimestamp,
		tiff.CatSoftware, tiff.CatDescription, tiff.CatOther:
		return true
	}
	return false
}

// multiFlag collects a repeatable string flag.
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}
