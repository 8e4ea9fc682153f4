package spreadsheet

import (
	"testing"
)

func TestTimeValueOfMoney(t *testing.T) {
	tests := []struct {
		name     string
		function string
		args     []Primitive
		expected float64
		delta    float64
	}{
		{"monthly payment", "PMT", []Primitive{0.08 / 12, 10.0, 10000.0}, -1037.032089, 1e-6},
		{"savings payment", "PMT", []Primitive{0.06 / 12, 18.0 * 12, 0.0, 50000.0}, -129.0811609, 1e-7},
		{"zero rate payment", "PMT", []Primitive{0.0, 10.0, 1000.0}, -100, 1e-9},
		{"future value in advance", "FV", []Primitive{0.06 / 12, 10.0, -200.0, -500.0, 1.0}, 2581.403374, 1e-6},
		{"present value", "PV", []Primitive{0.08 / 12, 12.0 * 20, 500.0, 0.0, 0.0}, -59777.14585, 1e-5},
		{"periods in advance", "NPER", []Primitive{0.12 / 12, -100.0, -1000.0, 10000.0, 1.0}, 59.6738657, 1e-7},
		{"periods", "NPER", []Primitive{0.12 / 12, -100.0, -1000.0, 10000.0}, 60.0821229, 1e-7},
		{"zero rate periods", "NPER", []Primitive{0.0, -100.0, 1000.0}, 10, 1e-9},
		{"rate", "RATE", []Primitive{48.0, -200.0, 8000.0}, 0.00770147, 1e-8},
		{"first interest payment", "IPMT", []Primitive{0.1 / 12, 1.0, 36.0, 8000.0}, -66.66666667, 1e-8},
		{"last yearly interest", "IPMT", []Primitive{0.1, 3.0, 3.0, 8000.0}, -292.4471299, 1e-7},
		{"principal payment", "PPMT", []Primitive{0.1 / 12, 1.0, 24.0, 2000.0}, -75.62318601, 1e-8},
		{"effective rate", "EFFECT", []Primitive{0.0525, 4.0}, 0.053542667, 1e-9},
		{"nominal rate", "NOMINAL", []Primitive{0.053543, 4.0}, 0.05250032, 1e-8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertNumberWithin(t, tt.expected, tt.delta, invoke(tt.function, tt.args...))
		})
	}

	t.Run("Errors", func(t *testing.T) {
		assertErrorCode(t, ErrorCodeNum, invoke("PMT", 0.1, 0.0, 1000.0))
		assertErrorCode(t, ErrorCodeNum, invoke("NPER", 0.0, 0.0, 1000.0))
		assertErrorCode(t, ErrorCodeNum, invoke("NPER", 0.1, -100.0, 2000.0))
		assertErrorCode(t, ErrorCodeNum, invoke("IPMT", 0.1, 4.0, 3.0, 8000.0))
		assertErrorCode(t, ErrorCodeNum, invoke("RATE", 0.0, -200.0, 8000.0))
		assertErrorCode(t, ErrorCodeNum, invoke("EFFECT", -0.1, 4.0))
		assertErrorCode(t, ErrorCodeValue, invoke("PV", "rate", 10.0, 100.0))
	})
}

func TestCashFlows(t *testing.T) {
	f := newEvalFactory(t)

	t.Run("NPV", func(t *testing.T) {
		assertNumberWithin(t, 1188.443412, 1e-6, invoke("NPV", 0.1, -10000.0, 3000.0, 4200.0, 6800.0))
		flows := f.CreateAreaEval("A1:A5", -10000.0, 3000.0, "skip", 4200.0, 6800.0)
		assertNumberWithin(t, 1188.443412, 1e-6, invoke("NPV", 0.1, flows))
		assertErrorCode(t, ErrorCodeDiv0, invoke("NPV", -1.0, 100.0))
	})

	t.Run("IRR", func(t *testing.T) {
		flows := f.CreateAreaEval("A1:A6", -70000.0, 12000.0, 15000.0, 18000.0, 21000.0, 26000.0)
		assertNumberWithin(t, 0.086630948, 1e-8, invoke("IRR", flows))
		shorter := f.CreateAreaEval("A1:A5", -70000.0, 12000.0, 15000.0, 18000.0, 21000.0)
		assertNumberWithin(t, -0.021244848, 1e-8, invoke("IRR", shorter))
		assertErrorCode(t, ErrorCodeNum, invoke("IRR", f.CreateAreaEval("A1:A2", 100.0, 200.0)))

		// the root is at 999999; from 0.1 twenty steps only reach ~684000
		far := f.CreateAreaEval("A1:A2", -1.0, 1000000.0)
		assertErrorCode(t, ErrorCodeNum, invoke("IRR", far))
		assertNumberWithin(t, 999999, 1e-3, invoke("IRR", far, 500000.0))
	})

	t.Run("MIRR", func(t *testing.T) {
		flows := f.CreateAreaEval("A1:A6", -120000.0, 39000.0, 30000.0, 21000.0, 37000.0, 46000.0)
		assertNumberWithin(t, 0.126094130, 1e-8, invoke("MIRR", flows, 0.1, 0.12))
		assertErrorCode(t, ErrorCodeDiv0, invoke("MIRR", f.CreateAreaEval("A1:A2", 1.0, 2.0), 0.1, 0.12))
	})

	t.Run("Schedules", func(t *testing.T) {
		values := f.CreateAreaEval("A1:A5", -10000.0, 2750.0, 4250.0, 3250.0, 2750.0)
		dates := f.CreateAreaEval("B1:B5", 39448.0, 39508.0, 39751.0, 39859.0, 39904.0)
		assertNumberWithin(t, 2086.647602, 1e-6, invoke("XNPV", 0.09, values, dates))
		assertNumberWithin(t, 0.373362535, 1e-7, invoke("XIRR", values, dates))

		early := f.CreateAreaEval("B1:B5", 39448.0, 39000.0, 39751.0, 39859.0, 39904.0)
		assertErrorCode(t, ErrorCodeNum, invoke("XNPV", 0.09, values, early))
		assertErrorCode(t, ErrorCodeNum, invoke("XNPV", 0.09, values, f.CreateAreaEval("B1:B2", 39448.0, 39508.0)))
		assertErrorCode(t, ErrorCodeValue, invoke("XIRR", values, f.CreateAreaEval("B1:B5", 39448.0, "soon", 39751.0, 39859.0, 39904.0)))
	})
}

func TestDepreciation(t *testing.T) {
	assertNumber(t, 2250, invoke("SLN", 30000.0, 7500.0, 10.0))
	assertErrorCode(t, ErrorCodeDiv0, invoke("SLN", 30000.0, 7500.0, 0.0))

	assertNumberWithin(t, 4090.909091, 1e-6, invoke("SYD", 30000.0, 7500.0, 10.0, 1.0))
	assertNumberWithin(t, 409.0909091, 1e-7, invoke("SYD", 30000.0, 7500.0, 10.0, 10.0))
	assertErrorCode(t, ErrorCodeNum, invoke("SYD", 30000.0, 7500.0, 10.0, 11.0))

	t.Run("DB", func(t *testing.T) {
		expected := []float64{186083.33, 259639.42, 176814.44, 120410.64, 81999.64, 55841.76, 15845.10}
		for i, want := range expected {
			assertNumberWithin(t, want, 0.01, invoke("DB", 1000000.0, 100000.0, 6.0, float64(i+1), 7.0))
		}
		assertErrorCode(t, ErrorCodeNum, invoke("DB", 1000000.0, 100000.0, 6.0, 8.0, 7.0))
		assertErrorCode(t, ErrorCodeNum, invoke("DB", 1000000.0, 100000.0, 6.0, 7.0))
		assertNumber(t, 0, invoke("DB", 0.0, 0.0, 6.0, 1.0))
	})

	t.Run("DDB", func(t *testing.T) {
		assertNumberWithin(t, 1.31507, 1e-5, invoke("DDB", 2400.0, 300.0, 3650.0, 1.0))
		assertNumberWithin(t, 40, 1e-9, invoke("DDB", 2400.0, 300.0, 120.0, 1.0, 2.0))
		assertNumberWithin(t, 480, 1e-9, invoke("DDB", 2400.0, 300.0, 10.0, 1.0, 2.0))
		assertNumberWithin(t, 306, 1e-9, invoke("DDB", 2400.0, 300.0, 10.0, 2.0, 1.5))
		assertNumberWithin(t, 22.12, 0.005, invoke("DDB", 2400.0, 300.0, 10.0, 10.0))
		assertErrorCode(t, ErrorCodeNum, invoke("DDB", 2400.0, 300.0, 10.0, 11.0))
	})
}
