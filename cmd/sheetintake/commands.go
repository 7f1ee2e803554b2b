package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"sheetintake/internal/intake"
	"sheetintake/internal/preview"
	"sheetintake/internal/probe"
	"sheetintake/internal/session"
	"sheetintake/internal/storage"
	"sheetintake/internal/submit"
)

// planFlags select sheets and apply review edits before plans are used.
type planFlags struct {
	sheets  []string
	renames []string
	types   []string
	autofix bool
}

func (pf *planFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceVar(&pf.sheets, "sheets", nil, "only use these sheets (comma-separated); default all")
	f.StringArrayVar(&pf.renames, "rename", nil, `rename a column: "Sheet:col=new_name" (col is 1-based or the current name)`)
	f.StringArrayVar(&pf.types, "set-type", nil, `override a column type: "Sheet:col=text|numeric|date|bool"`)
	f.BoolVar(&pf.autofix, "autofix", false, "re-sanitize every column name before other edits")
}

// openSession reads path and builds its plans, then applies pf.
func (a *app) openSession(ctx context.Context, path string, pf planFlags) (*session.WorkbookImportSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	mgr := session.NewManager(a.cfg.SessionOptions(a.libLogger()))
	s, err := mgr.Load(ctx, filepath.Base(path), data)
	if err != nil {
		return nil, err
	}
	if len(s.Plans) == 0 {
		return nil, fmt.Errorf("%s: no sheet with content", filepath.Base(path))
	}
	if err := applyPlanFlags(mgr, s, pf); err != nil {
		return nil, err
	}
	return mgr.Current(), nil
}

func applyPlanFlags(mgr *session.Manager, s *session.WorkbookImportSession, pf planFlags) error {
	if len(pf.sheets) > 0 {
		want := make(map[string]bool, len(pf.sheets))
		for _, name := range pf.sheets {
			name = strings.TrimSpace(name)
			if s.Plan(name) == nil {
				return fmt.Errorf("%w: %q", session.ErrSheetNotFound, name)
			}
			want[name] = true
		}
		for _, p := range s.Plans {
			if err := mgr.SetSelected(p.SheetName, want[p.SheetName]); err != nil {
				return err
			}
		}
	}
	if pf.autofix {
		for _, p := range s.Plans {
			if err := mgr.AutoFix(p.SheetName); err != nil {
				return err
			}
		}
	}
	for _, raw := range pf.renames {
		e, err := parseEdit(raw)
		if err != nil {
			return fmt.Errorf("--rename: %w", err)
		}
		col, err := resolveColumn(s, e)
		if err != nil {
			return fmt.Errorf("--rename: %w", err)
		}
		if err := mgr.RenameColumn(e.sheet, col, e.value); err != nil {
			return err
		}
	}
	for _, raw := range pf.types {
		e, err := parseEdit(raw)
		if err != nil {
			return fmt.Errorf("--set-type: %w", err)
		}
		t, ok := probe.ParseDeclaredType(strings.ToLower(e.value))
		if !ok {
			return fmt.Errorf("--set-type: %w: %q", probe.ErrUnknownType, e.value)
		}
		col, err := resolveColumn(s, e)
		if err != nil {
			return fmt.Errorf("--set-type: %w", err)
		}
		if err := mgr.SetColumnType(e.sheet, col, t); err != nil {
			return err
		}
	}
	return nil
}

//
// infer
//

func (a *app) inferCmd() *cobra.Command {
	var (
		pf     planFlags
		report bool
		pretty bool
	)
	cmd := &cobra.Command{
		Use:   "infer FILE",
		Short: "Print the import plan for every sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context(), args[0], pf)
			if err != nil {
				return err
			}
			if report {
				return writeReport(a.stdout, s)
			}
			return writeJSON(a.stdout, s.Plans, pretty)
		},
	}
	pf.register(cmd)
	cmd.Flags().BoolVar(&report, "report", false, "print a human-readable review instead of JSON")
	cmd.Flags().BoolVar(&pretty, "pretty", true, "pretty-print JSON output")
	return cmd
}

//
// payload
//

func (a *app) payloadCmd() *cobra.Command {
	var (
		pf     planFlags
		title  string
		pretty bool
	)
	cmd := &cobra.Command{
		Use:   "payload FILE",
		Short: "Print the ingestion payloads for the selected sheets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context(), args[0], pf)
			if err != nil {
				return err
			}
			return writeJSON(a.stdout, s.Payloads(title), pretty)
		},
	}
	pf.register(cmd)
	cmd.Flags().StringVar(&title, "title", "", "title used to name the target tables")
	cmd.Flags().BoolVar(&pretty, "pretty", true, "pretty-print JSON output")
	return cmd
}

//
// load
//

func (a *app) loadCmd() *cobra.Command {
	var (
		pf      planFlags
		title   string
		backend string
		dsn     string
	)
	cmd := &cobra.Command{
		Use:   "load FILE",
		Short: "Create tables for the selected sheets and load their rows into a local database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sc := a.cfg.StorageConfig()
			if cmd.Flags().Changed("backend") {
				sc.Kind = backend
			}
			if cmd.Flags().Changed("dsn") {
				sc.DSN = dsn
			}

			s, err := a.openSession(ctx, args[0], pf)
			if err != nil {
				return err
			}
			plans := s.Selected()
			payloads := s.Payloads(title)
			if len(payloads) == 0 {
				return submit.ErrNothingSelected
			}

			repo, err := storage.New(ctx, sc)
			if err != nil {
				return fmt.Errorf("open %s: %w", sc.Kind, err)
			}
			defer repo.Close()

			opts := storage.LoadOptions{BatchSize: a.cfg.Storage.BatchSize, Logger: a.libLogger()}
			for i, p := range payloads {
				res, err := storage.Load(ctx, repo, p, plans[i], opts)
				if err != nil {
					return fmt.Errorf("sheet %q: %w", p.SheetName, err)
				}
				fmt.Fprintf(a.stdout, "%s: loaded %d rows into %s (%d cells stored as NULL)\n",
					p.SheetName, res.Inserted, res.Table, res.Nulled)
			}
			return nil
		},
	}
	pf.register(cmd)
	cmd.Flags().StringVar(&title, "title", "", "title used to name the target tables")
	cmd.Flags().StringVar(&backend, "backend", "", "storage backend: sqlite|postgres|mssql (overrides config)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "database DSN (highest priority)")
	return cmd
}

//
// submit
//

func (a *app) submitCmd() *cobra.Command {
	var (
		pf          planFlags
		fileType    string
		subPractice string
		title       string
		description string
		tags        string
		apiURL      string
		token       string
	)
	cmd := &cobra.Command{
		Use:   "submit FILE",
		Short: "Upload the file with its metadata and ingest the selected sheets' schemas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			typ, err := intake.ParseFileType(fileType)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			u := &intake.Upload{
				FileName:    filepath.Base(path),
				Data:        data,
				Type:        typ,
				SubPractice: subPractice,
				Title:       title,
				Description: description,
				Tags:        intake.ParseTags(tags),
			}
			if err := u.Validate(); err != nil {
				return err
			}
			if w := intake.SizeWarning(int64(len(data))); w != "" {
				a.log.Print(w)
			}

			var payloads []probe.IngestPayload
			if typ == intake.TypeExcel {
				s, err := a.openSession(ctx, path, pf)
				if err != nil {
					return err
				}
				payloads = s.Payloads(u.Title)
			}

			if cmd.Flags().Changed("api-url") {
				a.cfg.API.URL = apiURL
			}
			if cmd.Flags().Changed("token") {
				a.cfg.API.Token = token
			}
			c := submit.NewClient(a.cfg.API.URL, a.cfg.API.Token, a.cfg.SubmitOptions())
			c.Logger = a.libLogger()

			a.debugf("submit: uploading %s (%s) to %s", u.FileName, humanize.IBytes(uint64(len(data))), c.BaseURL)
			res, err := c.SubmitWorkbook(ctx, u, payloads)
			if err != nil {
				if res.FileID != "" {
					a.log.Printf("file %s uploaded; ingested %d of %d sheets before the error", res.FileID, len(res.Ingested), len(payloads))
				}
				return err
			}
			return writeJSON(a.stdout, res, true)
		},
	}
	pf.register(cmd)
	f := cmd.Flags()
	f.StringVar(&fileType, "type", string(intake.TypeExcel), "file type: EXCEL|POWERPOINT|REPORT")
	f.StringVar(&subPractice, "sub-practice", "", "sub-practice: "+strings.Join(intake.SubPractices, ", "))
	f.StringVar(&title, "title", "", "title; defaults to the file name without extension")
	f.StringVar(&description, "description", "", "free-text description")
	f.StringVar(&tags, "tags", "", "comma-separated tags")
	f.StringVar(&apiURL, "api-url", "", "storage service base URL (overrides config)")
	f.StringVar(&token, "token", "", "bearer token (overrides config)")
	_ = cmd.MarkFlagRequired("sub-practice")
	return cmd
}

//
// preview
//

func (a *app) previewCmd() *cobra.Command {
	var paragraphs int
	cmd := &cobra.Command{
		Use:   "preview FILE",
		Short: "Print slide titles of a .pptx or the opening paragraphs of a .docx",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".pptx":
				slides, err := preview.Slides(data)
				if err != nil {
					return err
				}
				for _, s := range slides {
					fmt.Fprintf(a.stdout, "%d. %s\n", s.Index, s.Title)
					if s.Snippet != "" && s.Snippet != s.Title {
						fmt.Fprintf(a.stdout, "   %s\n", s.Snippet)
					}
				}
			case ".docx":
				paras, err := preview.Paragraphs(data, paragraphs)
				if err != nil {
					return err
				}
				for _, p := range paras {
					fmt.Fprintln(a.stdout, p)
				}
			default:
				return fmt.Errorf("preview supports .pptx and .docx; use infer for spreadsheets")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&paragraphs, "paragraphs", preview.DefaultParagraphs, "maximum .docx paragraphs to print")
	return cmd
}

//
// config
//

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration (token omitted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := a.cfg.YAML()
			if err != nil {
				return err
			}
			_, err = a.stdout.Write(out)
			return err
		},
	}
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
