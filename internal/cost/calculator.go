package cost

const CurrencyUSD = "USD"

type Estimate struct {
	PerImage float64 `json:"per_image"`
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
}

// Estimate prices a generation call from the static pricing table.
// Unknown combinations fall back to per-model defaults so stats stay
// populated even when the table lags upstream pricing changes.
func EstimateCost(model, size, quality string, count int) Estimate {
	perImage, ok := lookupPrice(model, size, quality)
	if !ok {
		// dall-e-2 ignores quality entirely.
		if model == "dall-e-2" {
			perImage, ok = lookupPrice(model, size, "")
		}
	}
	if !ok {
		switch model {
		case "gpt-image-1":
			perImage = 0.042
		case "dall-e-3":
			perImage = 0.040
		case "dall-e-2":
			perImage = 0.020
		}
	}

	if count < 1 {
		count = 1
	}
	return Estimate{
		PerImage: perImage,
		Total:    perImage * float64(count),
		Currency: CurrencyUSD,
	}
}
