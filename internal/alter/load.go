package alter

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hlop3z/applyalter/internal/alerr"
)

// File suffixes recognized by Load.
const (
	yamlSuffix = ".yaml"
	ymlSuffix  = ".yml"
	zipSuffix  = ".zip"
)

// Load reads alter units from the given paths, in argument order.
// A .yaml/.yml file yields one unit; a .zip package yields every YAML entry
// it contains, ordered by entry name. Each loaded unit is validated.
func Load(paths ...string) ([]*Alter, error) {
	var alters []*Alter
	for _, path := range paths {
		switch {
		case isYAML(path):
			a, err := fromFile(path)
			if err != nil {
				return nil, err
			}
			alters = append(alters, a)
		case strings.HasSuffix(path, zipSuffix):
			pkg, err := fromZip(path)
			if err != nil {
				return nil, err
			}
			alters = append(alters, pkg...)
		default:
			return nil, alerr.Newf(alerr.ErrAlterInvalid, "unknown file type %s", path)
		}
	}
	for _, a := range alters {
		if err := a.Validate(); err != nil {
			return nil, err
		}
	}
	return alters, nil
}

func isYAML(path string) bool {
	return strings.HasSuffix(path, yamlSuffix) || strings.HasSuffix(path, ymlSuffix)
}

func fromFile(path string) (*Alter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, alerr.Wrapf(alerr.ErrAlterNotFound, err, "file not found %s", path)
	}
	defer f.Close()
	return Parse(filepath.Base(path), f)
}

// fromZip loads every YAML entry of the package, sorted by entry name.
// Entry-name ordering is the package's versioning contract.
func fromZip(path string) ([]*Alter, error) {
	z, err := zip.OpenReader(path)
	if err != nil {
		return nil, alerr.Wrapf(alerr.ErrAlterPackage, err, "error reading zip file %s", path)
	}
	defer z.Close()

	var entries []*zip.File
	for _, f := range z.File {
		if f.FileInfo().IsDir() || !isYAML(f.Name) {
			continue
		}
		entries = append(entries, f)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	alters := make([]*Alter, 0, len(entries))
	for _, e := range entries {
		rc, err := e.Open()
		if err != nil {
			return nil, alerr.Wrapf(alerr.ErrAlterPackage, err, "error reading zip entry %s", e.Name)
		}
		a, err := Parse(filepath.Base(e.Name), rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		alters = append(alters, a)
	}
	return alters, nil
}

// Parse decodes one alter unit from YAML. The id is the source file name.
func Parse(id string, r io.Reader) (*Alter, error) {
	var doc alterDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, alerr.Wrapf(alerr.ErrAlterInvalid, err, "unable to parse alter %s", id)
	}

	a := &Alter{
		ID:          id,
		Schema:      doc.Schema,
		Instances:   doc.Instances,
		CheckOK:     doc.CheckOK,
		Checks:      doc.Checks,
		Description: doc.Description,
	}
	for i, raw := range doc.Statements {
		s, err := raw.statement()
		if err != nil {
			return nil, err.WithAlter(id).With("statement_index", i)
		}
		a.Statements = append(a.Statements, s)
	}
	return a, nil
}

// alterDoc is the YAML wire form of an Alter.
type alterDoc struct {
	Schema      string         `yaml:"schema"`
	Instances   []string       `yaml:"instances"`
	CheckOK     string         `yaml:"check_ok"`
	Checks      []Check        `yaml:"checks"`
	Statements  []rawStatement `yaml:"statements"`
	Description string         `yaml:"description"`
}

// rawStatement is the YAML wire form of one statement: a mapping with exactly
// one of the variant keys set.
type rawStatement struct {
	Comment *string `yaml:"comment"`
	SQL     *SQL    `yaml:"sql"`
	Range   *Range  `yaml:"range"`
	IDList  *IDList `yaml:"id_list"`
}

func (r rawStatement) statement() (Statement, *alerr.Error) {
	var out Statement
	n := 0
	if r.Comment != nil {
		out = &Comment{Text: *r.Comment}
		n++
	}
	if r.SQL != nil {
		out = r.SQL
		n++
	}
	if r.Range != nil {
		out = r.Range
		n++
	}
	if r.IDList != nil {
		out = r.IDList
		n++
	}
	if n != 1 {
		return nil, alerr.Newf(alerr.ErrAlterInvalid,
			"statement must have exactly one of comment/sql/range/id_list, got %d", n)
	}
	return out, nil
}
