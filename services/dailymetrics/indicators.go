package dailymetrics

import "math"

// All series below are ordered newest first, matching how metric
// recomputation slices the most recent bars.

// MA calculates a simple moving average over the newest `period` values
func MA(prices []float64, period int) float64 {
	if len(prices) < period || period <= 0 {
		return 0
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	return sum / float64(period)
}

// EMA calculates an exponential moving average seeded with the SMA of the
// oldest `period` values
func EMA(prices []float64, period int) float64 {
	if len(prices) < period || period <= 0 {
		return 0
	}

	sma := MA(prices[len(prices)-period:], period)
	if sma == 0 {
		return 0
	}

	multiplier := 2.0 / float64(period+1)
	ema := sma
	for i := len(prices) - period - 1; i >= 0; i-- {
		ema = (prices[i]-ema)*multiplier + ema
	}
	return ema
}

// emaSeries calculates the full EMA series, newest first
func emaSeries(prices []float64, period int) []float64 {
	if len(prices) < period {
		return nil
	}

	result := make([]float64, len(prices))
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	result[len(prices)-period] = sum / float64(period)

	multiplier := 2.0 / float64(period+1)
	for i := len(prices) - period - 1; i >= 0; i-- {
		result[i] = (prices[i]-result[i+1])*multiplier + result[i+1]
	}
	return result
}

// RSI calculates the Relative Strength Index over the newest `period`
// changes. Returns the neutral 50 when there is not enough history.
func RSI(prices []float64, period int) float64 {
	if len(prices) <= period {
		return 50
	}

	gains := 0.0
	losses := 0.0
	for i := 0; i < period; i++ {
		change := prices[i] - prices[i+1]
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	rsi := 100 - (100 / (1 + rs))
	return math.Round(rsi*100) / 100
}

// MACD calculates the MACD line (12-26 EMA spread), its 9-period signal
// line and the histogram
func MACD(prices []float64) (macd, signal, hist float64) {
	if len(prices) < 26 {
		return 0, 0, 0
	}

	macd = EMA(prices, 12) - EMA(prices, 26)
	if len(prices) < 35 {
		return macd, 0, macd
	}

	ema12 := emaSeries(prices, 12)
	ema26 := emaSeries(prices, 26)
	if ema12 == nil || ema26 == nil {
		return macd, 0, macd
	}

	macdSeries := make([]float64, len(prices)-25)
	for i := range macdSeries {
		macdSeries[i] = ema12[i] - ema26[i]
	}

	signal = EMA(macdSeries, 9)
	hist = macd - signal
	return math.Round(macd*100) / 100,
		math.Round(signal*100) / 100,
		math.Round(hist*100) / 100
}

// AvgVolume calculates the average volume over the newest `period` values,
// shrinking the window when history is short
func AvgVolume(volumes []float64, period int) float64 {
	if len(volumes) < period {
		period = len(volumes)
	}
	if period == 0 {
		return 0
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += volumes[i]
	}
	return math.Round(sum / float64(period))
}
