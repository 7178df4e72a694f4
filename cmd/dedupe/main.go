// Command dedupe reads URLs and prints the first occurrence of each
// distinct resource.
//
//	dedupe urls.txt more.txt
//	cat posts.txt | dedupe --extract --count
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/petroleumjelliffe/urlnorm/internal/aggregator"
	"github.com/petroleumjelliffe/urlnorm/internal/config"
	"github.com/petroleumjelliffe/urlnorm/internal/urlutil"
	"github.com/petroleumjelliffe/urlnorm/pkg/urlnorm"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := pflag.NewFlagSet("dedupe", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.StringP("config", "c", "", "yaml file with normalizer rules")
	extract := flags.BoolP("extract", "x", false, "extract http(s) URLs from free text instead of reading one URL per line")
	keys := flags.BoolP("keys", "k", false, "print the normalization key before each URL")
	count := flags.Bool("count", false, "print every distinct URL with its count once input is exhausted")
	if err := flags.Parse(args); err != nil {
		return err
	}

	logger := log.New(stderr, "[DEDUPE] ", 0)

	normalizer := urlnorm.Default()
	if *configPath != "" {
		cfg, err := config.LoadFile(*configPath)
		if err != nil {
			return err
		}
		if normalizer, err = cfg.Normalizer.Build(); err != nil {
			return err
		}
	}

	agg := aggregator.NewAggregator(normalizer, &aggregator.ShareCountRanking{})
	out := bufio.NewWriter(stdout)
	defer out.Flush()

	emit := func(c aggregator.Cluster, rawURL string) {
		if *keys {
			fmt.Fprintf(out, "%s\t%s\n", c.Key, rawURL)
		} else {
			fmt.Fprintln(out, rawURL)
		}
	}

	process := func(name string, r io.Reader) error {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			candidates := []string{line}
			if *extract {
				candidates = urlutil.ExtractURLs(line)
			}

			for _, rawURL := range candidates {
				c, created, err := agg.Add(rawURL, name)
				if err != nil {
					logger.Printf("%s:%d: skipping %q: %v", name, lineNo, rawURL, err)
					continue
				}
				if created && !*count {
					emit(c, rawURL)
				}
			}
		}
		return scanner.Err()
	}

	inputs := flags.Args()
	if len(inputs) == 0 {
		inputs = []string{"-"}
	}
	for _, name := range inputs {
		if name == "-" {
			if err := process("stdin", stdin); err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			continue
		}

		f, err := os.Open(name)
		if err != nil {
			return err
		}
		err = process(name, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
	}

	if *count {
		for _, c := range agg.Clusters() {
			if *keys {
				fmt.Fprintf(out, "%d\t%s\t%s\n", c.Count, c.Key, c.FirstURL)
			} else {
				fmt.Fprintf(out, "%d\t%s\n", c.Count, c.FirstURL)
			}
		}
	}

	logger.Printf("%d distinct URLs", agg.Len())
	return nil
}
