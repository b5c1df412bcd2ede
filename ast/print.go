package ast

import (
	"bytes"
	"fmt"
	"io"
)

// Print renders a Module back to ARO source text in canonical form.
// Reparsing the output reproduces a structurally-equal AST (ignoring
// source locations and comments) — the round-trip property exercised
// by spec §8 invariant 1. Print does not attempt to reproduce the
// original formatting, only an equivalent program.
func Print(w io.Writer, m *Module) error {
	for i, fs := range m.FeatureSets {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := printFeatureSet(w, fs); err != nil {
			return err
		}
	}
	return nil
}

func printFeatureSet(w io.Writer, fs *FeatureSet) error {
	if _, err := fmt.Fprintf(w, "(%s: %s)", fs.Name, fs.BusinessActivity); err != nil {
		return err
	}
	if fs.Guard != nil {
		if _, err := io.WriteString(w, " when "); err != nil {
			return err
		}
		if err := printExpression(w, fs.Guard); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, " {\n"); err != nil {
		return err
	}
	for _, stmt := range fs.Statements {
		if _, err := io.WriteString(w, "  "); err != nil {
			return err
		}
		if err := printStatement(w, stmt); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "}\n")
	return err
}

func printStatement(w io.Writer, s *Statement) error {
	if _, err := fmt.Fprintf(w, "%s ", s.Verb); err != nil {
		return err
	}
	if err := printDescriptor(w, s.Result); err != nil {
		return err
	}
	if s.Expression != nil {
		if _, err := fmt.Fprintf(w, " %s ", s.Expression.Op); err != nil {
			return err
		}
		if err := printOperand(w, *s.Expression.Right); err != nil {
			return err
		}
	}
	if s.Preposition != "" {
		if _, err := fmt.Fprintf(w, " %s ", s.Preposition); err != nil {
			return err
		}
		if err := printDescriptor(w, s.Object); err != nil {
			return err
		}
	}
	if s.With != nil {
		if _, err := io.WriteString(w, " with "); err != nil {
			return err
		}
		if s.With.Mapping != nil {
			if err := printObjectFields(w, s.With.Mapping); err != nil {
				return err
			}
		} else if s.With.Expression != nil {
			if err := printExpression(w, s.With.Expression); err != nil {
				return err
			}
		}
	}
	_, err := io.WriteString(w, ".")
	return err
}

func printDescriptor(w io.Writer, d *Descriptor) error {
	if d == nil {
		return nil
	}
	if !d.HasAngleBrackets() {
		return printLiteral(w, d.Literal)
	}
	if _, err := io.WriteString(w, "<"); err != nil {
		return err
	}
	if d.BaseName != "" {
		if _, err := io.WriteString(w, d.BaseName); err != nil {
			return err
		}
	} else if d.Literal != nil {
		if err := printLiteral(w, d.Literal); err != nil {
			return err
		}
	}
	if d.Qualifier != nil {
		if _, err := fmt.Fprintf(w, ":%s", d.Qualifier.String()); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, ">")
	return err
}

func printExpression(w io.Writer, e *Expression) error {
	if e == nil {
		return nil
	}
	if err := printOperand(w, e.Left); err != nil {
		return err
	}
	if e.IsComparison() {
		if _, err := fmt.Fprintf(w, " %s ", e.Op); err != nil {
			return err
		}
		return printOperand(w, *e.Right)
	}
	return nil
}

func printOperand(w io.Writer, op Operand) error {
	if op.Descriptor != nil {
		return printDescriptor(w, op.Descriptor)
	}
	return printLiteral(w, op.Literal)
}

func printLiteral(w io.Writer, lit *Literal) error {
	if lit == nil {
		_, err := io.WriteString(w, "null")
		return err
	}
	switch lit.Kind {
	case LiteralString:
		_, err := fmt.Fprintf(w, "%q", lit.Str)
		return err
	case LiteralInt:
		_, err := fmt.Fprintf(w, "%d", lit.Int)
		return err
	case LiteralFloat:
		_, err := fmt.Fprintf(w, "%g", lit.Float)
		return err
	case LiteralBool:
		_, err := fmt.Fprintf(w, "%t", lit.Bool)
		return err
	case LiteralNull:
		_, err := io.WriteString(w, "null")
		return err
	default:
		if lit.Array != nil {
			if _, err := io.WriteString(w, "["); err != nil {
				return err
			}
			for i, item := range lit.Array {
				if i > 0 {
					if _, err := io.WriteString(w, ", "); err != nil {
						return err
					}
				}
				if err := printLiteral(w, item); err != nil {
					return err
				}
			}
			_, err := io.WriteString(w, "]")
			return err
		}
		return printObjectFields(w, lit.Object)
	}
}

func printObjectFields(w io.Writer, fields []ObjectField) error {
	if _, err := io.WriteString(w, "{"); err != nil {
		return err
	}
	for i, f := range fields {
		if i > 0 {
			if _, err := io.WriteString(w, ", "); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s: ", f.Key); err != nil {
			return err
		}
		if err := printLiteral(w, f.Value); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "}")
	return err
}

// String renders the module using Print and returns it as a string.
func (m *Module) String() string {
	var buf bytes.Buffer
	_ = Print(&buf, m)
	return buf.String()
}
