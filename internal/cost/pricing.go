package cost

// OpenAI image generation pricing, USD per image.
// Source: https://openai.com/api/pricing/

type pricingKey struct {
	Model   string
	Size    string
	Quality string
}

var openAIPricing = map[pricingKey]float64{
	{Model: "gpt-image-1", Size: "1024x1024", Quality: "low"}:    0.011,
	{Model: "gpt-image-1", Size: "1024x1024", Quality: "medium"}: 0.042,
	{Model: "gpt-image-1", Size: "1024x1024", Quality: "high"}:   0.167,
	{Model: "gpt-image-1", Size: "1024x1024", Quality: "auto"}:   0.042,

	{Model: "gpt-image-1", Size: "1536x1024", Quality: "low"}:    0.016,
	{Model: "gpt-image-1", Size: "1536x1024", Quality: "medium"}: 0.063,
	{Model: "gpt-image-1", Size: "1536x1024", Quality: "high"}:   0.250,
	{Model: "gpt-image-1", Size: "1536x1024", Quality: "auto"}:   0.063,

	{Model: "gpt-image-1", Size: "1024x1536", Quality: "low"}:    0.016,
	{Model: "gpt-image-1", Size: "1024x1536", Quality: "medium"}: 0.063,
	{Model: "gpt-image-1", Size: "1024x1536", Quality: "high"}:   0.250,
	{Model: "gpt-image-1", Size: "1024x1536", Quality: "auto"}:   0.063,

	{Model: "gpt-image-1", Size: "auto", Quality: "low"}:    0.011,
	{Model: "gpt-image-1", Size: "auto", Quality: "medium"}: 0.042,
	{Model: "gpt-image-1", Size: "auto", Quality: "high"}:   0.167,
	{Model: "gpt-image-1", Size: "auto", Quality: "auto"}:   0.042,

	{Model: "dall-e-3", Size: "1024x1024", Quality: "standard"}: 0.040,
	{Model: "dall-e-3", Size: "1024x1024", Quality: "hd"}:       0.080,
	{Model: "dall-e-3", Size: "1024x1792", Quality: "standard"}: 0.080,
	{Model: "dall-e-3", Size: "1024x1792", Quality: "hd"}:       0.120,
	{Model: "dall-e-3", Size: "1792x1024", Quality: "standard"}: 0.080,
	{Model: "dall-e-3", Size: "1792x1024", Quality: "hd"}:       0.120,

	{Model: "dall-e-2", Size: "256x256", Quality: ""}:   0.016,
	{Model: "dall-e-2", Size: "512x512", Quality: ""}:   0.018,
	{Model: "dall-e-2", Size: "1024x1024", Quality: ""}: 0.020,
}

func lookupPrice(model, size, quality string) (float64, bool) {
	price, ok := openAIPricing[pricingKey{Model: model, Size: size, Quality: quality}]
	return price, ok
}
