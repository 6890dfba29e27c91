package entrez

import "context"

// StageOptions holds the optional parameters for FetchAndStage.
type StageOptions struct {
	// RetType is the return type for the fetched records. Empty uses "xml".
	RetType string
	// ForceDirect forces a direct return instead of staging.
	ForceDirect bool
	// IncludeRaw includes the raw fetched data in the response.
	IncludeRaw bool
}

// QueryOptions holds the optional parameters for querying staged data.
type QueryOptions struct {
	// IntendedUse hints how the query results will be used.
	IntendedUse string
	// MaxTokens caps the response size in tokens.
	MaxTokens *int
	// ResponseStyle selects the result formatting. Empty uses "text".
	ResponseStyle string
}

// SmartSummaryOptions holds the optional parameters for SmartSummary.
type SmartSummaryOptions struct {
	// IntendedUse hints how the summary will be used. Empty uses "analysis".
	IntendedUse string
	// MaxTokens caps the response size in tokens.
	MaxTokens *int
}

// Staging is a handle to a dataset staged on the server. It binds the
// server-issued data access id so the staged data can be queried,
// summarized, and introspected without repeating the id on every call.
type Staging struct {
	client       *Client
	dataAccessID string
	meta         Result
}

// FetchAndStage fetches records and stages them into the server's SQL store.
// The returned Staging is bound to the issued data access id; when the server
// returned the data directly instead of staging it (for example with
// ForceDirect set), DataAccessID is empty and the payload is available
// through Metadata.
func (c *Client) FetchAndStage(ctx context.Context, database string, ids []string, opts *StageOptions) (*Staging, error) {
	o := optsOrZero(opts)
	res, err := c.CallTool(ctx, "entrez_data", map[string]any{
		"operation":    "fetch_and_stage",
		"database":     database,
		"ids":          joinIDs(ids),
		"rettype":      defaultString(o.RetType, "xml"),
		"force_direct": o.ForceDirect,
		"include_raw":  o.IncludeRaw,
	})
	if err != nil {
		return nil, err
	}

	id, _ := res["data_access_id"].(string)
	return &Staging{
		client:       c,
		dataAccessID: id,
		meta:         res,
	}, nil
}

// DataAccessID returns the server-issued id for the staged dataset, or ""
// when the data was returned directly.
func (s *Staging) DataAccessID() string { return s.dataAccessID }

// Metadata returns the original staging result.
func (s *Staging) Metadata() Result { return s.meta }

// Query runs a SQL query against this staged dataset.
func (s *Staging) Query(ctx context.Context, sql string, opts *QueryOptions) (Result, error) {
	return s.client.QueryStaged(ctx, s.dataAccessID, sql, opts)
}

// SmartSummary retrieves a smart summary of this staged dataset.
func (s *Staging) SmartSummary(ctx context.Context, opts *SmartSummaryOptions) (Result, error) {
	return s.client.SmartSummary(ctx, s.dataAccessID, opts)
}

// Schema retrieves the schema of this staged dataset.
func (s *Staging) Schema(ctx context.Context) (Result, error) {
	return s.client.Schema(ctx, s.dataAccessID)
}

// QueryStaged runs a SQL query against a staged dataset by id.
func (c *Client) QueryStaged(ctx context.Context, dataAccessID, sql string, opts *QueryOptions) (Result, error) {
	o := optsOrZero(opts)
	return c.CallTool(ctx, "entrez_data", map[string]any{
		"operation":      "query",
		"data_access_id": dataAccessID,
		"sql":            sql,
		"intended_use":   omitEmpty(o.IntendedUse),
		"max_tokens":     omitNilInt(o.MaxTokens),
		"response_style": defaultString(o.ResponseStyle, "text"),
	})
}

// SmartSummary retrieves a smart summary of a staged dataset by id.
func (c *Client) SmartSummary(ctx context.Context, dataAccessID string, opts *SmartSummaryOptions) (Result, error) {
	o := optsOrZero(opts)
	return c.CallTool(ctx, "entrez_data", map[string]any{
		"operation":      "query",
		"data_access_id": dataAccessID,
		"smart_summary":  true,
		"intended_use":   defaultString(o.IntendedUse, "analysis"),
		"max_tokens":     omitNilInt(o.MaxTokens),
	})
}

// Schema retrieves the schema of a staged dataset by id.
func (c *Client) Schema(ctx context.Context, dataAccessID string) (Result, error) {
	return c.CallTool(ctx, "entrez_data", map[string]any{
		"operation":      "schema",
		"data_access_id": dataAccessID,
	})
}

// ListDatasets lists all staged datasets.
func (c *Client) ListDatasets(ctx context.Context) (Result, error) {
	return c.CallTool(ctx, "entrez_data", map[string]any{
		"operation": "list_datasets",
	})
}
