// Command smoketest runs the Go SDK integration checks against a live Entrez
// MCP server. The target server is taken from the BASE_URL environment
// variable and defaults to a local development instance.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/joeshaw/envdecode"

	"github.com/entrezmcp/go-entrez"
)

type config struct {
	BaseURL string `env:"BASE_URL,default=http://localhost:8787"`
}

type results struct {
	passed int
	failed int
}

func (r *results) record(ok bool) {
	if ok {
		r.passed++
	} else {
		r.failed++
	}
	fmt.Println()
}

func (r *results) total() int { return r.passed + r.failed }

func main() {
	os.Exit(run())
}

func run() int {
	var cfg config
	if err := envdecode.Decode(&cfg); err != nil {
		color.Red("❌ Failed to load configuration: %v", err)
		return 1
	}

	section("Entrez MCP Server - Go SDK Integration Tests")
	color.Yellow("Testing against: %s", cfg.BaseURL)
	color.Yellow("Run id: %s", uuid.NewString())

	client := entrez.NewClient(cfg.BaseURL)
	defer client.Close()

	ctx := context.Background()
	var res results

	section("1. Connection Tests")
	res.record(testConnection(ctx, client))
	res.record(testCapabilities(ctx, client))
	res.record(testFreshClient(ctx, cfg.BaseURL))

	section("2. Core E-utilities Tests")
	ids := testSearch(ctx, client)
	res.record(ids != nil)

	if len(ids) > 0 {
		res.record(testSummary(ctx, client, ids))
		res.record(testFetch(ctx, client, ids))
		res.record(testIDFormats(ctx, client, ids))
	} else {
		warn("Skipping summary, fetch, and ID format tests (no search results)")
		res.failed += 3
	}

	section("3. Data Staging Tests")
	if len(ids) > 0 {
		res.record(testDataStaging(ctx, client, ids))
	} else {
		warn("Skipping data staging test (no search results)")
		res.failed++
	}

	section("4. External API Tests")
	res.record(testPubChem(ctx, client))

	section("5. Error Handling Tests")
	res.record(testErrorHandling(ctx, client))

	section("Test Summary")
	color.Blue("Total tests: %d", res.total())
	color.Green("Passed: %d", res.passed)
	if res.failed > 0 {
		color.Red("Failed: %d", res.failed)
		color.Red("\n⚠️  %d test(s) failed", res.failed)
		return 1
	}
	color.Green("Failed: 0")
	color.Green("\n🎉 All tests passed!")
	return 0
}

func section(title string) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Cyan(title)
	fmt.Println(strings.Repeat("=", 60) + "\n")
}

func logTest(name string) { color.Blue("Testing: %s", name) }

func pass(format string, args ...any) { color.Green("✅ "+format, args...) }
func fail(format string, args ...any) { color.Red("❌ "+format, args...) }
func warn(format string, args ...any) { color.Yellow("⚠️  "+format, args...) }

func testConnection(ctx context.Context, client *entrez.Client) bool {
	logTest("Basic connection and API key status")
	if _, err := client.APIKeyStatus(ctx); err != nil {
		fail("Connection failed: %v", err)
		return false
	}
	pass("Connected! Status retrieved")
	return true
}

func testCapabilities(ctx context.Context, client *entrez.Client) bool {
	logTest("Get capabilities")
	if _, err := client.Capabilities(ctx, nil); err != nil {
		fail("Capabilities failed: %v", err)
		return false
	}
	pass("Capabilities retrieved successfully")
	return true
}

// testFreshClient verifies a second client instance establishes its own
// session rather than riding on the first one's.
func testFreshClient(ctx context.Context, baseURL string) bool {
	logTest("Independent client session")
	fresh := entrez.NewClient(baseURL)
	defer fresh.Close()

	if _, err := fresh.APIKeyStatus(ctx); err != nil {
		fail("Fresh client failed: %v", err)
		return false
	}
	pass("Fresh client established its own session")
	return true
}

func testSearch(ctx context.Context, client *entrez.Client) []string {
	logTest("Search PubMed")
	res, err := client.Search(ctx, "pubmed", "CRISPR gene editing", &entrez.SearchOptions{RetMax: 3})
	if err != nil {
		fail("Search failed: %v", err)
		return nil
	}

	ids := stringList(res["idlist"])
	if res["success"] != true || len(ids) == 0 {
		fail("Search returned no results")
		return nil
	}
	pass("Search successful: Found %v results, returned %d IDs", res["total_results"], len(ids))
	color.Blue("  First ID: %s", ids[0])
	return ids
}

func testSummary(ctx context.Context, client *entrez.Client, ids []string) bool {
	logTest("Get summaries")
	if _, err := client.Summary(ctx, "pubmed", ids[:1], &entrez.SummaryOptions{DetailLevel: "brief"}); err != nil {
		fail("Summary failed: %v", err)
		return false
	}
	pass("Summary retrieved successfully")
	return true
}

func testFetch(ctx context.Context, client *entrez.Client, ids []string) bool {
	logTest("Fetch abstract")
	opts := &entrez.FetchOptions{RetType: "abstract", DetailLevel: "brief"}
	if _, err := client.Fetch(ctx, "pubmed", ids[:1], opts); err != nil {
		fail("Fetch failed: %v", err)
		return false
	}
	pass("Fetch successful")
	return true
}

// testIDFormats checks that a multi-element ID slice and a pre-joined
// comma-separated string produce the same call shape.
func testIDFormats(ctx context.Context, client *entrez.Client, ids []string) bool {
	logTest("ID parameter handling (slice vs joined string)")
	subset := ids[:min(2, len(ids))]
	opts := &entrez.SummaryOptions{DetailLevel: "brief"}

	if _, err := client.Summary(ctx, "pubmed", subset, opts); err != nil {
		fail("Slice ID format failed: %v", err)
		return false
	}
	if _, err := client.Summary(ctx, "pubmed", []string{strings.Join(subset, ",")}, opts); err != nil {
		fail("Joined ID format failed: %v", err)
		return false
	}
	pass("Both slice and joined ID formats work")
	return true
}

func testDataStaging(ctx context.Context, client *entrez.Client, ids []string) bool {
	logTest("Data staging and SQL queries")

	staging, err := client.FetchAndStage(ctx, "pubmed", ids[:min(2, len(ids))], nil)
	if err != nil {
		fail("Data staging failed: %v", err)
		return false
	}
	if staging.DataAccessID() == "" {
		fail("Staging failed: No data_access_id returned")
		return false
	}
	pass("Data staged with ID: %.16s...", staging.DataAccessID())

	schema, err := staging.Schema(ctx)
	if err != nil {
		fail("Schema retrieval failed: %v", err)
		return false
	}
	pass("Schema retrieved: %s", strings.Join(stringList(schema["table_names"]), ", "))

	query, err := staging.Query(ctx, "SELECT pmid, title FROM article LIMIT 2", nil)
	if err != nil {
		fail("SQL query failed: %v", err)
		return false
	}
	rows, _ := query["row_count"].(float64)
	if query["success"] != true || rows == 0 {
		fail("SQL query returned no results")
		return false
	}
	pass("SQL query successful: %d rows returned", int(rows))
	return true
}

func testPubChem(ctx context.Context, client *entrez.Client) bool {
	logTest("PubChem compound lookup")
	if _, err := client.Compound(ctx, "aspirin", "name", ""); err != nil {
		fail("PubChem failed: %v", err)
		return false
	}
	pass("PubChem lookup successful")
	return true
}

func testErrorHandling(ctx context.Context, client *entrez.Client) bool {
	logTest("Error handling with invalid database")
	_, err := client.Search(ctx, "invalid_database", "test", nil)
	if err == nil {
		fail("Should have returned an error for invalid database")
		return false
	}

	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "invalid database") && !strings.Contains(msg, "invalid_database") {
		fail("Unexpected error: %v", err)
		return false
	}
	pass("Error handling works correctly")
	return true
}

// stringList converts a decoded JSON array into a string slice, skipping
// non-string elements.
func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
