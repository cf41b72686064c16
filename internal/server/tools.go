package server

// Tool describes one MCP tool as surfaced by tools/list.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func schema(properties map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func strProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func enumProp(desc string, values ...string) map[string]any {
	return map[string]any{"type": "string", "description": desc, "enum": values}
}

func intProp(desc string, min, max int) map[string]any {
	return map[string]any{"type": "integer", "description": desc, "minimum": min, "maximum": max}
}

func toolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "create_image_session",
			Description: "Create a persistent image conversation session for multi-turn iterative generation. Returns a session_id to pass to generate_in_session.",
			InputSchema: schema(map[string]any{
				"description": strProp("What this session is working towards"),
				"name":        strProp("Short human-readable session name (optional)"),
				"model":       enumProp("Pin a model for the whole session (optional)", "gpt-image-1", "dall-e-3", "dall-e-2"),
			}, "description"),
		},
		{
			Name:        "get_session_status",
			Description: "Inspect a session: turn count, images generated, last activity.",
			InputSchema: schema(map[string]any{
				"session_id": strProp("Session identifier returned by create_image_session"),
			}, "session_id"),
		},
		{
			Name:        "list_active_sessions",
			Description: "List all live sessions, most recently active first.",
			InputSchema: schema(map[string]any{}),
		},
		{
			Name:        "close_session",
			Description: "Close a session and return its final summary. The session id becomes invalid.",
			InputSchema: schema(map[string]any{
				"session_id": strProp("Session identifier to close"),
			}, "session_id"),
		},
		{
			Name:        "generate_image",
			Description: "Generate one or more images from a text prompt. Model, quality and size are auto-selected from the prompt unless overridden.",
			InputSchema: schema(map[string]any{
				"prompt":        strProp("Text description of the desired image"),
				"model":         enumProp("Override the auto-selected model", "gpt-image-1", "dall-e-3", "dall-e-2"),
				"quality":       strProp("Override the auto-selected quality (model-specific vocabulary)"),
				"size":          strProp("Image dimensions, e.g. 1024x1024, 1536x1024, 1024x1536"),
				"background":    enumProp("Background handling (gpt-image-1 only)", "transparent", "opaque", "auto"),
				"output_format": enumProp("Artifact encoding", "png", "jpeg", "webp"),
				"n":             intProp("Number of images to generate", 1, 10),
				"session_id":    strProp("Attach the result to an existing session (optional)"),
			}, "prompt"),
		},
		{
			Name:        "generate_in_session",
			Description: "Generate the next image in a session, carrying the conversation history so refinements build on earlier turns.",
			InputSchema: schema(map[string]any{
				"session_id":           strProp("Session identifier"),
				"prompt":               strProp("Instruction for this turn, e.g. 'make the sky darker'"),
				"reference_image_path": strProp("Local image to edit instead of generating fresh (optional)"),
				"mask_image_path":      strProp("Mask restricting the edit region; transparent areas are replaced (optional)"),
			}, "session_id", "prompt"),
		},
		{
			Name:        "edit_image",
			Description: "Edit an existing image with a text instruction, optionally constrained by a mask. Accepts a local path or an HTTPS URL.",
			InputSchema: schema(map[string]any{
				"image_path":    strProp("Local path of the image to edit"),
				"image_url":     strProp("HTTPS URL of the image to edit (alternative to image_path)"),
				"prompt":        strProp("Edit instruction"),
				"mask_path":     strProp("Local mask image; transparent areas mark the edit region (optional)"),
				"model":         enumProp("Editing model", "gpt-image-1", "dall-e-2"),
				"size":          strProp("Output dimensions (optional)"),
				"quality":       strProp("Output quality (optional)"),
				"output_format": enumProp("Artifact encoding", "png", "jpeg", "webp"),
				"n":             intProp("Number of edited variants", 1, 10),
			}, "prompt"),
		},
		{
			Name:        "promote_image_to_session",
			Description: "Start a new session seeded with an existing generated image so it can be refined iteratively.",
			InputSchema: schema(map[string]any{
				"image_path":  strProp("Path of a previously generated image"),
				"name":        strProp("Name for the new session (optional)"),
				"description": strProp("What the follow-up work is aiming for"),
			}, "image_path", "description"),
		},
		{
			Name:        "generate_product_image",
			Description: "Generate professional product photography with controlled background, angle and lighting.",
			InputSchema: schema(map[string]any{
				"description":     strProp("The product to photograph"),
				"background_type": enumProp("Background treatment", "white", "transparent", "lifestyle", "gradient"),
				"angle":           enumProp("Camera angle", "front", "side", "top", "angle45"),
				"lighting":        enumProp("Lighting setup", "studio", "natural", "dramatic", "soft"),
				"batch_count":     intProp("How many shots to produce", 1, 4),
			}, "description"),
		},
		{
			Name:        "generate_ui_asset",
			Description: "Generate a UI asset (icon, illustration, banner, background or button) with a consistent theme and style.",
			InputSchema: schema(map[string]any{
				"asset_type":   enumProp("Kind of asset", "icon", "illustration", "banner", "background", "button"),
				"description":  strProp("What the asset should depict"),
				"theme":        enumProp("Color theme", "light", "dark", "colorful", "monochrome"),
				"style_preset": enumProp("Visual style", "flat", "gradient", "outline", "realistic", "pixel"),
				"size_preset":  enumProp("Asset dimensions", "small", "medium", "large", "wide", "tall"),
			}, "asset_type", "description"),
		},
		{
			Name:        "batch_generate",
			Description: "Generate images for up to 10 prompts in one call, with 1-3 variations each. Failures for one prompt do not abort the rest.",
			InputSchema: schema(map[string]any{
				"prompts":               map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Prompts to generate, at most 10"},
				"variations_per_prompt": intProp("Variations per prompt", 1, 3),
				"size":                  strProp("Dimensions for every image (optional)"),
				"quality":               strProp("Quality for every image (optional)"),
			}, "prompts"),
		},
		{
			Name:        "get_server_stats",
			Description: "Report server health: uptime, live sessions, per-tool call counts, and cumulative generation totals.",
			InputSchema: schema(map[string]any{}),
		},
		{
			Name:        "get_usage_guide",
			Description: "Return a guide describing every tool, when to use it, and how sessions work.",
			InputSchema: schema(map[string]any{}),
		},
	}
}
