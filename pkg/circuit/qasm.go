package circuit

import (
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Pre-compiled regexps for QASM parsing.
var (
	qregRegex    = regexp.MustCompile(`^qreg\s+(\w+)\s*\[\s*(\d+)\s*\]$`)
	gateRegex    = regexp.MustCompile(`^([a-zA-Z_]\w*)\s*(?:\(([^)]*)\))?\s+(.+)$`)
	operandRegex = regexp.MustCompile(`^(\w+)\s*\[\s*(\d+)\s*\]$`)
	piExprRegex  = regexp.MustCompile(`^(-?)(\d*\.?\d*)\s*\*?\s*pi(?:\s*/\s*(\d+\.?\d*))?$`)

	// gate bodies contain their own semicolons, so declarations are cut out whole
	gateDeclRegex = regexp.MustCompile(`\bgate\s+[^{;]*\{[^}]*\}`)
)

// Statements that carry no routing information.
var ignoredStatements = []string{"OPENQASM", "include", "creg", "barrier", "measure", "reset", "opaque", "if"}

// bridgeDefinition declares the bridge gate for QASM consumers.
const bridgeDefinition = "gate bridge a,b,c { cx b,c; cx a,b; cx b,c; cx a,b; }"

// ParseQASM reads an OpenQASM 2.0 program. Quantum registers are laid out
// one after another in declaration order. Measurements, barriers, classical
// registers and custom gate declarations are skipped.
func ParseQASM(r io.Reader) (*Circuit, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read qasm: %w", err)
	}

	var src strings.Builder
	for _, line := range strings.Split(string(data), "\n") {
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		src.WriteString(line)
		src.WriteByte('\n')
	}
	body := gateDeclRegex.ReplaceAllString(src.String(), "")

	offsets := make(map[string]int)
	sizes := make(map[string]int)
	c := New(0)

	for i, stmt := range strings.Split(body, ";") {
		stmt = strings.Join(strings.Fields(stmt), " ")
		if stmt == "" || hasIgnoredPrefix(stmt) {
			continue
		}

		if m := qregRegex.FindStringSubmatch(stmt); m != nil {
			n, _ := strconv.Atoi(m[2])
			if _, dup := offsets[m[1]]; dup {
				return nil, fmt.Errorf("statement %d: register %q declared twice", i+1, m[1])
			}
			offsets[m[1]] = c.NumQubits
			sizes[m[1]] = n
			c.NumQubits += n
			continue
		}

		g, err := parseGate(stmt, offsets, sizes)
		if err != nil {
			return nil, fmt.Errorf("statement %d: %w", i+1, err)
		}
		if err := c.Append(g); err != nil {
			return nil, fmt.Errorf("statement %d: %w", i+1, err)
		}
	}
	return c, nil
}

// ParseQASMString is ParseQASM over a string.
func ParseQASMString(s string) (*Circuit, error) {
	return ParseQASM(strings.NewReader(s))
}

// hasIgnoredPrefix matches whole keywords only, so gates named "ifx" or
// "resetq" are still parsed.
func hasIgnoredPrefix(stmt string) bool {
	for _, p := range ignoredStatements {
		rest, ok := strings.CutPrefix(stmt, p)
		if ok && (rest == "" || !isWordByte(rest[0])) {
			return true
		}
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' || '0' <= b && b <= '9' || 'a' <= b && b <= 'z' || 'A' <= b && b <= 'Z'
}

func parseGate(stmt string, offsets, sizes map[string]int) (Gate, error) {
	m := gateRegex.FindStringSubmatch(stmt)
	if m == nil {
		return Gate{}, fmt.Errorf("unrecognized statement %q", stmt)
	}

	g := Gate{Name: strings.ToLower(m[1])}
	if strings.TrimSpace(m[2]) != "" {
		for _, p := range strings.Split(m[2], ",") {
			val, ok := parseParamExpr(p)
			if !ok {
				return Gate{}, fmt.Errorf("%s: bad parameter %q", g.Name, p)
			}
			g.Params = append(g.Params, val)
		}
	}

	for _, op := range strings.Split(m[3], ",") {
		om := operandRegex.FindStringSubmatch(strings.TrimSpace(op))
		if om == nil {
			return Gate{}, fmt.Errorf("%s: bad operand %q", g.Name, op)
		}
		offset, ok := offsets[om[1]]
		if !ok {
			return Gate{}, fmt.Errorf("%s: unknown register %q", g.Name, om[1])
		}
		idx, _ := strconv.Atoi(om[2])
		if idx >= sizes[om[1]] {
			return Gate{}, fmt.Errorf("%s: %s[%d]: %w", g.Name, om[1], idx, ErrQubitOutOfRange)
		}
		g.Qubits = append(g.Qubits, offset+idx)
	}
	return g, nil
}

// parseParamExpr parses a number or a multiple of pi such as "3*pi/4".
func parseParamExpr(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if val, err := strconv.ParseFloat(s, 64); err == nil {
		return val, true
	}

	m := piExprRegex.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return 0, false
	}
	coeff := 1.0
	if m[2] != "" {
		c, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return 0, false
		}
		coeff = c
	}
	val := coeff * math.Pi
	if m[3] != "" {
		d, err := strconv.ParseFloat(m[3], 64)
		if err != nil || d == 0 {
			return 0, false
		}
		val /= d
	}
	if m[1] == "-" {
		val = -val
	}
	return val, true
}

// QASM renders the circuit as OpenQASM 2.0 over a single register q.
func (c *Circuit) QASM() string {
	var sb strings.Builder
	sb.WriteString("OPENQASM 2.0;\n")
	sb.WriteString("include \"qelib1.inc\";\n")

	for _, g := range c.Gates {
		if g.Name == BridgeGate {
			sb.WriteString(bridgeDefinition)
			sb.WriteByte('\n')
			break
		}
	}

	fmt.Fprintf(&sb, "qreg q[%d];\n", max(c.NumQubits, 1))
	for _, g := range c.Gates {
		sb.WriteString(g.String())
		sb.WriteString(";\n")
	}
	return sb.String()
}

// WriteQASM writes the QASM rendering of c to w.
func (c *Circuit) WriteQASM(w io.Writer) error {
	_, err := io.WriteString(w, c.QASM())
	return err
}
