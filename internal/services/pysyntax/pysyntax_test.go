package pysyntax

import (
	"errors"
	"strings"
	"testing"

	"formatif-grader/internal/domain/model"
)

const validBMP280 = `# /// script
# requires-python = ">=3.11"
# dependencies = ["adafruit-circuitpython-bmp280"]
# ///
"""Read the BMP280 once.

Wiring: SDA -> GPIO2, SCL -> GPIO3.
"""
import time
import board
import adafruit_bmp280

i2c = board.I2C()  # uses board.SCL and board.SDA
sensor = adafruit_bmp280.Adafruit_BMP280_I2C(i2c, address=0x77)
sensor.sea_level_pressure = 1013.25

readings = {
    "temp": sensor.temperature,
    'press': sensor.pressure,
}


class Station:
	def __init__(self, name):
		self.name = name

	def show(self):
		print(f"{self.name}: {readings['temp']:.1f} C, {{raw}}")


def main():
    total = 1e-3 + 0x1F + 1_000 + .5
    if total > 0 and \
            sensor.altitude > -100:
        print(f"Temperature: {sensor.temperature:.1f} C")
        print(f"Pressure: {sensor.pressure:>{8}.1f} hPa")
        print("Altitude: %.2f m" % sensor.altitude)
    for x in [1, 2,
              3]: print(x)
    s = r"C:\temp" + "\\"
    while (n := 3) > 5:
        pass
    else:
        return '''multi
        line'''


if __name__ == "__main__":
    main()
`

func TestCheckAcceptsValidSource(t *testing.T) {
	cases := map[string]string{
		"bmp280":        validBMP280,
		"empty":         "",
		"comments only": "# nothing yet\n\n   # still nothing\n",
		"no newline":    "import board",
		"crlf":          "if True:\r\n    x = 1\r\n",
		"unicode ident": "température = 21\nprint(température)\n",
		"bytes prefix":  "data = Rb'\\x00' + BR\"x\"\n",
	}
	for name, src := range cases {
		if err := Check(src); err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
	}
}

func TestCheckReportsErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		line int
		msg  string
	}{
		{"never closed", "import board\nprint(\"hi\"\n", 2, "'(' was never closed"},
		{"unmatched", "x = 1)\n", 1, "unmatched ')'"},
		{"mismatch", "x = (1]\n", 1, "closing parenthesis ']' does not match opening parenthesis '('"},
		{"mismatch across lines", "x = (1,\n2]\n", 2, "closing parenthesis ']' does not match opening parenthesis '(' on line 1"},
		{"unterminated", "s = \"abc\n", 1, "unterminated string literal (detected at line 1)"},
		{"unterminated triple", "s = '''abc\nmore\n", 1, "unterminated triple-quoted string literal (detected at line 2)"},
		{"unexpected indent", "x = 1\n    y = 2\n", 2, "unexpected indent"},
		{"missing block", "if x:\ny = 1\n", 2, "expected an indented block after 'if' statement on line 1"},
		{"missing block at eof", "def main():\n", 2, "expected an indented block after function definition on line 1"},
		{"bad dedent", "if x:\n        y = 1\n    z = 2\n", 3, "unindent does not match any outer indentation level"},
		{"missing colon", "for i in range(3)\n    print(i)\n", 1, "expected ':'"},
		{"print statement", "print \"hello\"\n", 1, "Missing parentheses in call to 'print'. Did you mean print(...)?"},
		{"smart quote", "x = \u201chi\u201d\n", 1, "invalid character '\u201c' (U+201C)"},
		{"fstring open field", "x = f\"{a\"\n", 1, "f-string: expecting '}'"},
		{"fstring single brace", "x = f\"a}\"\n", 1, "f-string: single '}' is not allowed"},
		{"continuation", "x = 1 \\ 2\n", 1, "unexpected character after line continuation character"},
		{"dollar", "x = $y\n", 1, "invalid syntax"},
	}
	for _, tc := range cases {
		err := Check(tc.src)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		var se *Error
		if !errors.As(err, &se) {
			t.Fatalf("%s: expected *Error, got %T", tc.name, err)
		}
		if se.Line != tc.line || se.Msg != tc.msg {
			t.Fatalf("%s: got line %d %q, want line %d %q", tc.name, se.Line, se.Msg, tc.line, tc.msg)
		}
		if !errors.Is(err, model.ErrSyntax) {
			t.Fatalf("%s: error should wrap ErrSyntax", tc.name)
		}
	}
}

func TestErrorString(t *testing.T) {
	err := Check("x = (\n")
	if err == nil || !strings.HasPrefix(err.Error(), "line 1: ") {
		t.Fatalf("unexpected error text: %v", err)
	}
}

func TestNestedQuotesInsideReplacementField(t *testing.T) {
	src := "d = {'k': 1}\nprint(f\"{d['k']} and {d[\"k\"]}\")\n"
	if err := Check(src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFStringReusesEnclosingQuotes(t *testing.T) {
	cases := map[string]string{
		"same quote":       "print(f\"{\"=\" * 40}\")\n",
		"nested fstring":   "x = f'{f'{1}'}'\n",
		"triple in triple": "x = f\"\"\"{\"\"\"a\"\"\"}\"\"\"\n",
		"join":             "print(f\"{', '.join(names)}\")\n",
	}
	for name, src := range cases {
		if err := Check(src); err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
	}
}
