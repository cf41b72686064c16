package server

const usageGuide = `# OpenAI Image MCP Server

Generate and edit images through the OpenAI Images API. Artifacts are
saved under generated_images/ in your workspace, each with a JSON
metadata sidecar recording the prompt, model, parameters and cost.

## Quick start

Single image:
  generate_image {"prompt": "a lighthouse at dusk"}

Model, quality and size are auto-selected from the prompt. Prompts that
mention text, signs or logos pick gpt-image-1; artistic prompts pick
dall-e-3. Override any parameter explicitly to skip auto-selection.

## Iterative work: sessions

For multi-turn refinement, create a session so each instruction builds
on the previous turns:

  1. create_image_session {"name": "logo", "description": "company logo drafts"}
  2. generate_in_session {"session_id": "...", "prompt": "a minimalist fox logo"}
  3. generate_in_session {"session_id": "...", "prompt": "make the fox orange"}

The last 50 turns are replayed as context. Sessions are held in memory,
expire after the configured idle timeout, and are capped at the
configured maximum. close_session returns a final summary; use
get_session_status and list_active_sessions to inspect live sessions.

promote_image_to_session starts a new session from an existing generated
file so earlier work can be refined later.

## Editing

edit_image takes a local path or an HTTPS URL plus an instruction, with
an optional mask (transparent regions mark the area to replace). Only
gpt-image-1 and dall-e-2 support editing. Inside a session, pass
reference_image_path to generate_in_session.

## Specialized generation

- generate_product_image: product photography with background_type
  (white, transparent, lifestyle, gradient), angle (front, side, top,
  angle45), lighting (studio, natural, dramatic, soft) and batch_count
  up to 4.
- generate_ui_asset: icons, illustrations, banners, backgrounds and
  buttons with theme, style_preset and size_preset controls. Icons and
  buttons are rendered on transparent backgrounds.
- batch_generate: up to 10 prompts with 1-3 variations each; one failed
  prompt does not abort the rest.

## Operations

get_server_stats reports uptime, live sessions, per-tool call counts and
cumulative generation totals. get_usage_guide returns this document.
Every tool returns a JSON payload with a
"success" flag; failures carry "error" and a stable "error_kind" tag
(session_not_found, capacity_exceeded, request_rejected,
upstream_unavailable, io_error, invalid_params, internal).
`

func (s *Server) handleUsageGuide() (any, error) {
	return map[string]any{
		"success": true,
		"guide":   usageGuide,
	}, nil
}
