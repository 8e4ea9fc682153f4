package spreadsheet

import (
	"fmt"
	"testing"
)

func newBenchSpreadsheet(b *testing.B) *Spreadsheet {
	b.Helper()
	s := NewSpreadsheet()
	if err := s.AddWorksheet("Sheet1"); err != nil {
		b.Fatal(err)
	}
	return s
}

func mustSet(b *testing.B, s *Spreadsheet, address string, value Primitive) {
	b.Helper()
	if err := s.Set(address, value); err != nil {
		b.Fatal(err)
	}
}

func BenchmarkFormulaDependencyChain(b *testing.B) {
	s := newBenchSpreadsheet(b)
	mustSet(b, s, "Sheet1!A1", 1.0)
	for i := 2; i <= 100; i++ {
		mustSet(b, s, fmt.Sprintf("Sheet1!A%d", i), fmt.Sprintf("=A%d+1", i-1))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mustSet(b, s, "Sheet1!A1", float64(i))
		s.Calculate()
	}
}

func BenchmarkWideDependencyFanOut(b *testing.B) {
	s := newBenchSpreadsheet(b)
	mustSet(b, s, "Sheet1!A1", 100.0)
	for i := 2; i <= 500; i++ {
		mustSet(b, s, fmt.Sprintf("Sheet1!B%d", i), "=A1*2")
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mustSet(b, s, "Sheet1!A1", float64(i))
		s.Calculate()
	}
}

func BenchmarkAggregationFunctions(b *testing.B) {
	s := newBenchSpreadsheet(b)
	for i := 1; i <= 500; i++ {
		mustSet(b, s, fmt.Sprintf("Sheet1!A%d", i), float64(i))
	}
	for i, formula := range []string{
		"=SUM(A1:A500)", "=AVERAGE(A1:A500)", "=MEDIAN(A1:A500)",
		"=STDEV(A1:A500)", "=PERCENTILE(A1:A500,0.9)", "=LARGE(A1:A500,10)",
	} {
		mustSet(b, s, fmt.Sprintf("Sheet1!B%d", i+1), formula)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mustSet(b, s, "Sheet1!A1", float64(i))
		s.Calculate()
	}
}

func BenchmarkCriteriaFunctions(b *testing.B) {
	s := newBenchSpreadsheet(b)
	regions := []string{"north", "south", "east", "west"}
	for i := 1; i <= 1000; i++ {
		mustSet(b, s, fmt.Sprintf("Sheet1!A%d", i), regions[i%len(regions)])
		mustSet(b, s, fmt.Sprintf("Sheet1!B%d", i), float64(i%97))
	}
	mustSet(b, s, "Sheet1!C1", `=SUMIF(A1:A1000,"north",B1:B1000)`)
	mustSet(b, s, "Sheet1!C2", `=COUNTIFS(A1:A1000,"s*",B1:B1000,">50")`)
	mustSet(b, s, "Sheet1!C3", `=AVERAGEIFS(B1:B1000,A1:A1000,"<>east")`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mustSet(b, s, "Sheet1!B1", float64(i%97))
		s.Calculate()
	}
}

func BenchmarkLookupFunctions(b *testing.B) {
	s := newBenchSpreadsheet(b)
	for i := 1; i <= 1000; i++ {
		mustSet(b, s, fmt.Sprintf("Sheet1!A%d", i), float64(i*3))
		mustSet(b, s, fmt.Sprintf("Sheet1!B%d", i), fmt.Sprintf("item%d", i))
	}
	for row := 1; row <= 50; row++ {
		mustSet(b, s, fmt.Sprintf("Sheet1!D%d", row), fmt.Sprintf("=VLOOKUP(%d,A1:B1000,2,FALSE)", row*57))
		mustSet(b, s, fmt.Sprintf("Sheet1!E%d", row), fmt.Sprintf("=MATCH(%d,A1:A1000,1)", row*58))
		mustSet(b, s, fmt.Sprintf("Sheet1!F%d", row), fmt.Sprintf(`=INDEX(B1:B1000,MATCH("item%d",B1:B1000,0))`, row*11))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mustSet(b, s, "Sheet1!B1", fmt.Sprintf("item%d", i))
		s.Calculate()
	}
}

func BenchmarkVolatileFunctions(b *testing.B) {
	s := newBenchSpreadsheet(b)
	for i := 1; i <= 50; i++ {
		mustSet(b, s, fmt.Sprintf("Sheet1!A%d", i), "=RAND()")
		mustSet(b, s, fmt.Sprintf("Sheet1!B%d", i), fmt.Sprintf("=A%d*100", i))
		mustSet(b, s, fmt.Sprintf("Sheet1!C%d", i), "=NOW()-TODAY()")
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Calculate()
	}
}

func BenchmarkDistributionFunctions(b *testing.B) {
	s := newBenchSpreadsheet(b)
	mustSet(b, s, "Sheet1!E1", 5.0)
	for row := 1; row <= 100; row++ {
		x := float64(row) / 10
		mustSet(b, s, fmt.Sprintf("Sheet1!A%d", row), fmt.Sprintf("=NORM.DIST(%g,$E$1,2,TRUE)", x))
		mustSet(b, s, fmt.Sprintf("Sheet1!B%d", row), fmt.Sprintf("=T.DIST(%g-$E$1,12,TRUE)", x))
		mustSet(b, s, fmt.Sprintf("Sheet1!C%d", row), fmt.Sprintf("=BETA.DIST(%g,2,$E$1,TRUE)", x/10.1))
		mustSet(b, s, fmt.Sprintf("Sheet1!D%d", row), fmt.Sprintf("=NORM.INV(A%d,0,1)", row))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mustSet(b, s, "Sheet1!E1", float64(4+i%3))
		s.Calculate()
	}
}

func BenchmarkFinancialFunctions(b *testing.B) {
	s := newBenchSpreadsheet(b)
	for i := 1; i <= 60; i++ {
		mustSet(b, s, fmt.Sprintf("Sheet1!A%d", i), float64(1000+i*37%400))
	}
	mustSet(b, s, "Sheet1!A61", -50000.0)
	mustSet(b, s, "Sheet1!B1", "=IRR(A61:A61)")
	mustSet(b, s, "Sheet1!B2", "=NPV(0.01,A1:A60)")
	mustSet(b, s, "Sheet1!B3", "=RATE(60,-1100,50000)")
	mustSet(b, s, "Sheet1!B4", "=PMT(0.005,360,250000)")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mustSet(b, s, "Sheet1!A1", float64(1000+i%50))
		s.Calculate()
	}
}

func BenchmarkTextFunctions(b *testing.B) {
	s := newBenchSpreadsheet(b)
	for i := 1; i <= 200; i++ {
		mustSet(b, s, fmt.Sprintf("Sheet1!A%d", i), fmt.Sprintf("  Item %d of the Catalog  ", i))
		mustSet(b, s, fmt.Sprintf("Sheet1!B%d", i), fmt.Sprintf(`=UPPER(TRIM(A%d))&"-"&TEXT(%d,"000.00")`, i, i))
		mustSet(b, s, fmt.Sprintf("Sheet1!C%d", i), fmt.Sprintf(`=SUBSTITUTE(A%d,"Item","Row")`, i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mustSet(b, s, "Sheet1!A1", fmt.Sprintf("Item %d", i))
		s.Calculate()
	}
}

func BenchmarkCircularReferenceDetection(b *testing.B) {
	for i := 0; i < b.N; i++ {
		s := newBenchSpreadsheet(b)
		for col := 0; col < 8; col++ {
			next := FormatCellAddress(0, uint32((col+1)%8))
			mustSet(b, s, "Sheet1!"+FormatCellAddress(0, uint32(col)), "="+next+"+1")
		}
		s.Calculate()
	}
}

func BenchmarkDirtyPropagation(b *testing.B) {
	s := newBenchSpreadsheet(b)
	const grid = 20
	for row := 0; row < grid; row++ {
		for col := 0; col < grid; col++ {
			addr := "Sheet1!" + FormatCellAddress(uint32(row), uint32(col))
			switch {
			case row == 0 && col == 0:
				mustSet(b, s, addr, 1.0)
			case row == 0:
				mustSet(b, s, addr, "="+FormatCellAddress(0, uint32(col-1))+"+1")
			case col == 0:
				mustSet(b, s, addr, "="+FormatCellAddress(uint32(row-1), 0)+"+1")
			default:
				mustSet(b, s, addr, "="+FormatCellAddress(uint32(row), uint32(col-1))+"+"+FormatCellAddress(uint32(row-1), uint32(col)))
			}
		}
	}
	s.Calculate()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mustSet(b, s, "Sheet1!A1", float64(i%100))
		s.Calculate()
	}
}

func BenchmarkParseFormula(b *testing.B) {
	ctx := &ParserContext{ResolveWorksheet: func(string) uint32 { return 1 }}
	formula := `=IF(AND(Sheet1!A1>10,B2<>"x"),SUMIFS(C1:C100,D1:D100,">=5")*2^3%,VLOOKUP(E1,Data!A1:F50,3,FALSE))`
	for i := 0; i < b.N; i++ {
		if _, err := ParseFormula(formula, ctx); err != nil {
			b.Fatal(err)
		}
	}
}
