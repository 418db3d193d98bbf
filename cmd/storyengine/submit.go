package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/eringen/storyengine"
	"github.com/eringen/storyengine/bundle"
)

type submitOptions struct {
	sub      storyengine.Submission
	htmlPath string
	outDir   string
	files    bool
	upload   bool
	strict   bool
	inspect  string
}

func submitCommand() *cobra.Command {
	var opts submitOptions

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Bundle one story",
		Long: `Build the story document and manifest for one submission and write the
bundle archive to --out. With --inspect, print the contents of an existing
bundle instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.inspect != "" {
				return runInspect(cmd.OutOrStdout(), opts.inspect)
			}
			return runSubmit(cmd, &opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.sub.Title, "title", "", "story title")
	f.StringVar(&opts.sub.MetaDescription, "description", "", "meta description")
	f.StringVar(&opts.sub.MetaKeywords, "keywords", "", "comma separated meta keywords")
	f.StringVar(&opts.sub.ContentType, "content-type", storyengine.ContentArticle, "News or Article")
	f.StringVar(&opts.sub.Language, "lang", "en-US", "language code")
	f.StringVar(&opts.sub.Category, "category", "", "story category")
	f.StringVar(&opts.sub.FilterTags, "tags", "", "comma separated filter tags")
	f.StringVar(&opts.sub.ImageURL, "image", "", "source image URL")
	f.StringVar(&opts.sub.CoverURL, "cover", "", "custom cover image URL (defaults to --image)")
	f.StringVar(&opts.htmlPath, "html", "", `raw story HTML file ("-" reads stdin)`)
	f.StringVar(&opts.outDir, "out", ".", "output directory")
	f.BoolVar(&opts.files, "files", false, "write the .html and _metadata.json files instead of the archive")
	f.BoolVar(&opts.upload, "upload", false, "upload the story document to the HTML bucket")
	f.BoolVar(&opts.strict, "strict", false, "fail when the template keeps unresolved placeholders")
	f.StringVar(&opts.inspect, "inspect", "", "print the contents of an existing bundle archive")
	return cmd
}

func runSubmit(cmd *cobra.Command, opts *submitOptions) error {
	if opts.htmlPath == "" {
		return errors.New("--html is required")
	}
	raw, err := readInput(cmd.InOrStdin(), opts.htmlPath)
	if err != nil {
		return err
	}
	opts.sub.RawHTML = string(raw)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("upload") {
		cfg.UploadHTML = opts.upload
	}
	if cmd.Flags().Changed("strict") {
		cfg.Template.Strict = opts.strict
	}

	app, err := storyengine.New(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.Submit(cmd.Context(), opts.sub)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return err
	}
	b := res.Bundle
	out := cmd.OutOrStdout()
	if opts.files {
		if err := writeFile(out, filepath.Join(opts.outDir, bundle.HTMLEntry(b.Name)), []byte(b.HTML)); err != nil {
			return err
		}
		if err := writeFile(out, filepath.Join(opts.outDir, bundle.ManifestEntry(b.Name)), b.Manifest); err != nil {
			return err
		}
	} else if err := writeFile(out, filepath.Join(opts.outDir, b.ArchiveName), b.Archive); err != nil {
		return err
	}

	fmt.Fprintf(out, "story link: %s\n", res.Identity.CanonicalURL)
	if res.StoryURL != "" {
		fmt.Fprintf(out, "uploaded:   %s\n", res.StoryURL)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", w)
	}
	return nil
}

func runInspect(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	html, m, err := bundle.ReadArchive(data)
	if err != nil {
		return err
	}
	manifest, err := m.Marshal()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\n\ndocument: %d bytes\n", manifest, len(html))
	return nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func writeFile(w io.Writer, path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(w, "  created %s\n", path)
	return nil
}
