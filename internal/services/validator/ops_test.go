package validator

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"formatif-grader/internal/domain/model"
)

func TestContainsAllReportsMissingInOrder(t *testing.T) {
	text := "sensor.pressure\n"
	patterns := []model.PatternSpec{
		{Literal: ".temperature"},
		{Literal: ".pressure"},
		{Literal: ".altitude"},
	}
	if diff := cmp.Diff([]string{".temperature", ".altitude"}, ContainsAll(text, patterns)); diff != "" {
		t.Fatalf("missing mismatch (-want +got):\n%s", diff)
	}
	if got := ContainsAll(text+"x.temperature x.altitude", patterns); len(got) != 0 {
		t.Fatalf("expected nothing missing, got %v", got)
	}
}

func TestContainsAllRegex(t *testing.T) {
	patterns := []model.PatternSpec{
		{Regex: `board\.I2C\(\)`},
		{Regex: `Adafruit_BMP280_I2C\s*\(`},
		{Regex: `i2c\s*=`},
	}
	text := "i2c = board.I2C()\nsensor = adafruit_bmp280.Adafruit_BMP280_I2C (i2c)\n"
	if got := ContainsAll(text, patterns); len(got) != 0 {
		t.Fatalf("unexpected missing: %v", got)
	}
	if got := ContainsAll("bus = board.I2C()", patterns); len(got) != 2 {
		t.Fatalf("expected two missing, got %v", got)
	}
}

func TestContainsAnyLabel(t *testing.T) {
	p := model.PatternSpec{Label: "temperature and sensor", Regex: `(?is)(?:temperature.*sensor|sensor.*temperature)`}
	if !ContainsAny("SENSOR = x\nprint(Temperature)", []model.PatternSpec{p}) {
		t.Fatalf("case-insensitive alternative should match")
	}
	if ContainsAny("print('hello')", []model.PatternSpec{p, {Literal: ".temperature"}}) {
		t.Fatalf("nothing should match")
	}
}

func TestContainsCombination(t *testing.T) {
	preds := []model.LinePredicate{
		{Name: "Temperature", Keywords: []string{"temp", "print"}, CaseInsensitive: true},
		{Name: "Pressure", Keywords: []string{"press", "print"}, CaseInsensitive: true},
		{Name: "Altitude", Keywords: []string{"alt", "print"}, CaseInsensitive: true},
	}
	text := "PRINT(f'Temp: {t}')\nprint(f'Pressure: {p}')\nalt = sensor.altitude\nprint(alt_value)\n"
	held, ok := ContainsCombination(text, preds, "all")
	if !ok {
		t.Fatalf("expected all predicates to hold, got %v", held)
	}

	// Keywords must share a line.
	held, ok = ContainsCombination("temp = 1\nprint(x)\n", preds, "all")
	if ok || held[0] {
		t.Fatalf("keywords on separate lines must not count: %v", held)
	}

	held, ok = ContainsCombination("print(temp)\n", preds, "any")
	if !ok || diffBools(held, []bool{true, false, false}) {
		t.Fatalf("any combinator: ok=%v held=%v", ok, held)
	}

	caseSensitive := []model.LinePredicate{{Name: "t", Keywords: []string{"temp", "print"}}}
	if _, ok := ContainsCombination("PRINT(TEMP)", caseSensitive, ""); ok {
		t.Fatalf("case-sensitive predicate should not match upper case")
	}
}

func TestMissingImports(t *testing.T) {
	text := "import board\nfrom adafruit_bmp280 import Adafruit_BMP280_I2C\n"
	if got := MissingImports(text, []string{"board", "adafruit_bmp280", "neopixel"}); !cmp.Equal(got, []string{"neopixel"}) {
		t.Fatalf("unexpected missing: %v", got)
	}
}

func diffBools(a, b []bool) bool { return !cmp.Equal(a, b) }
