package registry

// DefaultModels returns the built-in known-model table.
func DefaultModels() map[string]Entry {
	return map[string]Entry{
		"CompVis/stable-diffusion-v1-4": {
			Type: TypeImage,
			URL:  "CompVis/stable-diffusion-v1-4",
		},
		"meta-llama/Meta-Llama-3-8B-Instruct": {
			Type:    TypeText,
			URL:     "meta-llama/Meta-Llama-3-8B-Instruct/v1/chat/completions",
			Payload: PayloadChat,
		},
	}
}

// DefaultTaskTypes returns the built-in pipeline tag mapping.
func DefaultTaskTypes() map[string]Type {
	return map[string]Type{
		"text-generation":           TypeText,
		"text2text-generation":      TypeText,
		"question-answering":        TypeText,
		"summarization":             TypeText,
		"translation":               TypeText,
		"text-classification":       TypeText,
		"image-classification":      TypeText,
		"image-segmentation":        TypeText,
		"image-to-text":             TypeText,
		"text-to-image":             TypeImage,
		"image-to-image":            TypeImage,
		"visual-question-answering": TypeText,
	}
}
