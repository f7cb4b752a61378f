// Package definition reads survey definition files.
//
// A definition is an HCL file with one or more survey blocks. Questions are
// declared in order and referenced by their block label from rules:
//
//	survey "Ice cream" {
//	  hidden_fields = ["utm_source"]
//
//	  question "cone" {
//	    type     = "YN"
//	    text     = "Do you want a cone?"
//	    required = true
//
//	    rule {
//	      jump_to = "bye"
//	      condition {
//	        tested = "cone"
//	        match  = "IS"
//	        value  = false
//	      }
//	    }
//	  }
//
//	  question "bye" {
//	    type = "TS"
//	    text = "Thanks!"
//	  }
//	}
//
// The parameters attribute of a question is an object with the same keys as
// the stored parameters, e.g. parameters = { number_of_steps = 10 }.
package definition

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// File is the decoded content of a definition file.
type File struct {
	Surveys []*Survey `hcl:"survey,block"`
}

type Survey struct {
	Name         string      `hcl:"name,label"`
	Publish      bool        `hcl:"publish,optional"`
	HiddenFields []string    `hcl:"hidden_fields,optional"`
	Questions    []*Question `hcl:"question,block"`
}

type Question struct {
	Key         string `hcl:"key,label"`
	Type        string `hcl:"type"`
	Text        string `hcl:"text"`
	Description string `hcl:"description,optional"`
	Required    bool   `hcl:"required,optional"`

	ImageURL    string `hcl:"image_url,optional"`
	VideoURL    string `hcl:"video_url,optional"`
	Orientation string `hcl:"orientation,optional"`
	PositionX   *int   `hcl:"position_x,optional"`
	PositionY   *int   `hcl:"position_y,optional"`
	Opacity     *int   `hcl:"opacity,optional"`

	// Parameters stays an expression until the question type is known.
	Parameters hcl.Expression `hcl:"parameters,optional"`
	Choices    []*Choice      `hcl:"choice,block"`
	Rules      []*Rule        `hcl:"rule,block"`
}

type Choice struct {
	Label    string `hcl:"label,label"`
	ImageURL string `hcl:"image_url,optional"`
}

// Rule becomes a rule set of the enclosing question.
type Rule struct {
	JumpTo     string       `hcl:"jump_to"`
	Conditions []*Condition `hcl:"condition,block"`
}

// Condition tests the answer to the question keyed Tested. For choice
// conditions Value is the label of one of its choices.
type Condition struct {
	Tested  string         `hcl:"tested"`
	Operand string         `hcl:"operand,optional"`
	Match   string         `hcl:"match"`
	Value   hcl.Expression `hcl:"value"`
}

// Parse decodes a definition held in memory. filename is only used in
// diagnostics.
func Parse(filename string, src []byte) (*File, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse definition %s: %w", filename, diags)
	}
	return decode(filename, hclFile)
}

// ParseFile reads and decodes the definition at path.
func ParseFile(path string) (*File, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("definition %s: %w", path, err)
	}
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse definition %s: %w", path, diags)
	}
	return decode(path, hclFile)
}

func decode(filename string, hclFile *hcl.File) (*File, error) {
	var f File
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &f); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode definition %s: %w", filename, diags)
	}
	if err := f.check(); err != nil {
		return nil, fmt.Errorf("definition %s: %w", filename, err)
	}
	return &f, nil
}

// check resolves the local question keys used by rules.
func (f *File) check() error {
	for _, s := range f.Surveys {
		keys := make(map[string]bool, len(s.Questions))
		for _, q := range s.Questions {
			if keys[q.Key] {
				return fmt.Errorf("survey %q: duplicate question %q", s.Name, q.Key)
			}
			keys[q.Key] = true
		}
		for _, q := range s.Questions {
			for _, r := range q.Rules {
				if !keys[r.JumpTo] {
					return fmt.Errorf("survey %q: question %q jumps to unknown question %q", s.Name, q.Key, r.JumpTo)
				}
				if len(r.Conditions) == 0 {
					return fmt.Errorf("survey %q: rule of question %q has no condition", s.Name, q.Key)
				}
				for _, c := range r.Conditions {
					if !keys[c.Tested] {
						return fmt.Errorf("survey %q: question %q tests unknown question %q", s.Name, q.Key, c.Tested)
					}
				}
			}
		}
	}
	return nil
}
