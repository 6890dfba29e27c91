package entrez

import (
	"context"
	"strings"
)

// defaultRetMax is the default maximum number of search results requested.
const defaultRetMax = 20

// Int returns a pointer to v, for use in option structs with optional
// integer fields.
func Int(v int) *int { return &v }

// SearchOptions holds the optional parameters for Search.
type SearchOptions struct {
	// RetMax is the maximum number of results to return. Zero uses the
	// default of 20.
	RetMax int
	// RetStart is the starting position for pagination.
	RetStart *int
	// Sort is the sort order.
	Sort string
	// Field restricts the search to a specific field.
	Field string
	// IntendedUse hints how the results will be used
	// ("search", "analysis", "citation", "staging").
	IntendedUse string
}

// SummaryOptions holds the optional parameters for Summary.
type SummaryOptions struct {
	// RetMax is the maximum number of summaries to return.
	RetMax *int
	// CompactMode enables compact formatting.
	CompactMode bool
	// DetailLevel is one of "brief", "auto", or "full".
	DetailLevel string
	// MaxTokens caps the response size in tokens.
	MaxTokens *int
}

// FetchOptions holds the optional parameters for Fetch.
type FetchOptions struct {
	// RetType is the return type, e.g. "abstract", "fasta", "gb".
	RetType string
	// IntendedUse hints how the records will be used.
	IntendedUse string
	// DetailLevel is one of "brief", "auto", or "full".
	DetailLevel string
}

// LinkOptions holds the optional parameters for Link.
type LinkOptions struct {
	// DBFrom is the source database when it differs from the target.
	DBFrom string
	// LinkName selects a specific link type.
	LinkName string
}

// CapabilitiesOptions holds the optional parameters for Capabilities.
type CapabilitiesOptions struct {
	// Format is the output format. Empty uses "summary".
	Format string
	// Tool limits the response to a single tool.
	Tool string
	// IncludeMetadata adds tool metadata to the response.
	IncludeMetadata bool
}

// StructureSearchOptions holds the optional parameters for StructureSearch.
type StructureSearchOptions struct {
	// Threshold is the similarity threshold. Zero uses the default of 90.
	Threshold int
	// MaxRecords caps the number of records returned. Zero uses the default
	// of 1000.
	MaxRecords int
}

// APIKeyStatus checks NCBI API key status and rate limits.
func (c *Client) APIKeyStatus(ctx context.Context) (Result, error) {
	return c.CallTool(ctx, "system_api_key_status", map[string]any{})
}

// Capabilities retrieves the server's tool capabilities.
func (c *Client) Capabilities(ctx context.Context, opts *CapabilitiesOptions) (Result, error) {
	o := optsOrZero(opts)
	format := o.Format
	if format == "" {
		format = "summary"
	}
	return c.CallTool(ctx, "entrez_capabilities", map[string]any{
		"format":           format,
		"tool":             omitEmpty(o.Tool),
		"include_metadata": o.IncludeMetadata,
	})
}

// ToolInfo retrieves detailed information about a specific tool. An empty
// format defaults to "json".
func (c *Client) ToolInfo(ctx context.Context, tool, format string) (Result, error) {
	if format == "" {
		format = "json"
	}
	return c.CallTool(ctx, "entrez_tool_info", map[string]any{
		"tool":             tool,
		"format":           format,
		"include_metadata": true,
	})
}

// Search searches a database with a query term and returns matching IDs with
// metadata.
func (c *Client) Search(ctx context.Context, database, term string, opts *SearchOptions) (Result, error) {
	o := optsOrZero(opts)
	retmax := o.RetMax
	if retmax == 0 {
		retmax = defaultRetMax
	}
	return c.CallTool(ctx, "entrez_query", map[string]any{
		"operation":    "search",
		"database":     database,
		"term":         term,
		"retmax":       retmax,
		"retstart":     omitNilInt(o.RetStart),
		"sort":         omitEmpty(o.Sort),
		"field":        omitEmpty(o.Field),
		"intended_use": omitEmpty(o.IntendedUse),
	})
}

// Summary retrieves document summaries for the given IDs.
func (c *Client) Summary(ctx context.Context, database string, ids []string, opts *SummaryOptions) (Result, error) {
	o := optsOrZero(opts)
	return c.CallTool(ctx, "entrez_query", map[string]any{
		"operation":    "summary",
		"database":     database,
		"ids":          joinIDs(ids),
		"retmax":       omitNilInt(o.RetMax),
		"compact_mode": o.CompactMode,
		"detail_level": omitEmpty(o.DetailLevel),
		"max_tokens":   omitNilInt(o.MaxTokens),
	})
}

// Fetch retrieves detailed records for the given IDs.
func (c *Client) Fetch(ctx context.Context, database string, ids []string, opts *FetchOptions) (Result, error) {
	o := optsOrZero(opts)
	return c.CallTool(ctx, "entrez_query", map[string]any{
		"operation":    "fetch",
		"database":     database,
		"ids":          joinIDs(ids),
		"rettype":      omitEmpty(o.RetType),
		"intended_use": omitEmpty(o.IntendedUse),
		"detail_level": omitEmpty(o.DetailLevel),
	})
}

// Info retrieves information about a database.
func (c *Client) Info(ctx context.Context, database string) (Result, error) {
	return c.CallTool(ctx, "entrez_query", map[string]any{
		"operation": "info",
		"database":  database,
	})
}

// Link finds links from the given IDs into the target database.
func (c *Client) Link(ctx context.Context, database string, ids []string, opts *LinkOptions) (Result, error) {
	o := optsOrZero(opts)
	return c.CallTool(ctx, "entrez_query", map[string]any{
		"operation": "link",
		"database":  database,
		"ids":       joinIDs(ids),
		"dbfrom":    omitEmpty(o.DBFrom),
		"linkname":  omitEmpty(o.LinkName),
	})
}

// Post posts IDs to the Entrez history server. An empty useHistory defaults
// to "y".
func (c *Client) Post(ctx context.Context, database string, ids []string, useHistory string) (Result, error) {
	if useHistory == "" {
		useHistory = "y"
	}
	return c.CallTool(ctx, "entrez_query", map[string]any{
		"operation":  "post",
		"database":   database,
		"ids":        joinIDs(ids),
		"usehistory": useHistory,
	})
}

// GlobalQuery runs a query across all Entrez databases at once.
func (c *Client) GlobalQuery(ctx context.Context, term string) (Result, error) {
	return c.CallTool(ctx, "entrez_query", map[string]any{
		"operation": "global_query",
		"term":      term,
	})
}

// Spell retrieves spelling suggestions for a term. An empty database defaults
// to "pubmed".
func (c *Client) Spell(ctx context.Context, term, database string) (Result, error) {
	if database == "" {
		database = "pubmed"
	}
	return c.CallTool(ctx, "entrez_query", map[string]any{
		"operation": "spell",
		"database":  database,
		"term":      term,
	})
}

// Compound retrieves PubChem compound data. An empty identifierType defaults
// to "name" and an empty outputFormat to "json".
func (c *Client) Compound(ctx context.Context, identifier, identifierType, outputFormat string) (Result, error) {
	return c.pubchem(ctx, "compound", identifier, defaultString(identifierType, "name"), outputFormat)
}

// Substance retrieves PubChem substance data. An empty identifierType
// defaults to "sid" and an empty outputFormat to "json".
func (c *Client) Substance(ctx context.Context, identifier, identifierType, outputFormat string) (Result, error) {
	return c.pubchem(ctx, "substance", identifier, defaultString(identifierType, "sid"), outputFormat)
}

// BioAssay retrieves PubChem bioassay data. An empty identifierType defaults
// to "aid" and an empty outputFormat to "json".
func (c *Client) BioAssay(ctx context.Context, identifier, identifierType, outputFormat string) (Result, error) {
	return c.pubchem(ctx, "bioassay", identifier, defaultString(identifierType, "aid"), outputFormat)
}

func (c *Client) pubchem(ctx context.Context, operation, identifier, identifierType, outputFormat string) (Result, error) {
	return c.CallTool(ctx, "entrez_external", map[string]any{
		"service":         "pubchem",
		"operation":       operation,
		"identifier":      identifier,
		"identifier_type": identifierType,
		"output_format":   defaultString(outputFormat, "json"),
	})
}

// StructureSearch searches PubChem by chemical structure.
func (c *Client) StructureSearch(
	ctx context.Context,
	structure, structureType, searchType string,
	opts *StructureSearchOptions,
) (Result, error) {
	o := optsOrZero(opts)
	threshold := o.Threshold
	if threshold == 0 {
		threshold = 90
	}
	maxRecords := o.MaxRecords
	if maxRecords == 0 {
		maxRecords = 1000
	}
	return c.CallTool(ctx, "entrez_external", map[string]any{
		"service":        "pubchem",
		"operation":      "structure_search",
		"structure":      structure,
		"structure_type": structureType,
		"search_type":    searchType,
		"threshold":      threshold,
		"max_records":    maxRecords,
	})
}

// ConvertPMCIDs converts between PMC ID formats. An empty versions defaults
// to "no".
func (c *Client) ConvertPMCIDs(ctx context.Context, ids []string, versions string) (Result, error) {
	if versions == "" {
		versions = "no"
	}
	return c.CallTool(ctx, "entrez_external", map[string]any{
		"service":   "pmc",
		"operation": "id_convert",
		"ids":       joinIDs(ids),
		"versions":  versions,
	})
}

// PMCArticle retrieves a PMC Open Access article. An empty outputFormat
// defaults to "xml".
func (c *Client) PMCArticle(ctx context.Context, id, outputFormat string) (Result, error) {
	return c.CallTool(ctx, "entrez_external", map[string]any{
		"service":       "pmc",
		"operation":     "oa_service",
		"id":            id,
		"output_format": defaultString(outputFormat, "xml"),
	})
}

// ExportCitations exports citations for the given IDs. An empty
// citationFormat defaults to "ris".
func (c *Client) ExportCitations(ctx context.Context, ids []string, citationFormat string) (Result, error) {
	if citationFormat == "" {
		citationFormat = "ris"
	}
	return c.CallTool(ctx, "entrez_external", map[string]any{
		"service":         "pmc",
		"operation":       "citation_export",
		"ids":             joinIDs(ids),
		"citation_format": citationFormat,
	})
}

// joinIDs joins a list of identifiers into the comma-separated string form
// the server expects. A single element may itself already be comma-separated.
func joinIDs(ids []string) string {
	return strings.Join(ids, ",")
}

func optsOrZero[T any](opts *T) T {
	if opts == nil {
		var zero T
		return zero
	}
	return *opts
}

// omitEmpty maps the empty string to the absent value so the transport layer
// omits the parameter entirely.
func omitEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// omitNilInt maps a nil pointer to the absent value; an explicit zero is
// preserved.
func omitNilInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
