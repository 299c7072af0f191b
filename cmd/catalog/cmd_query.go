package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sentimentscope/catalog/internal/domain"
	"github.com/sentimentscope/catalog/internal/usecase"
)

var productFilter struct {
	sentiment string
	brand     string
	topic     string
	search    string
	rating    int
}

var searchFilter struct {
	sentiment string
	brand     string
}

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List catalog products",
	Long: `Loads the catalog and prints every product matching the filters.

Example:
  catalog products --brand Apple --sentiment positive
  catalog products --offline -q camera`,
	Args: cobra.NoArgs,
	RunE: runProducts,
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the catalog",
	Long: `Searches the catalog API, or the loaded products when the API is not in use.

Example:
  catalog search galaxy --brand Samsung`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where catalog data comes from",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	mutedStyle  = lipgloss.NewStyle().Faint(true)
)

func runProducts(cmd *cobra.Command, args []string) error {
	filter := domain.ProductFilter{
		Sentiment: domain.Sentiment(productFilter.sentiment),
		Brand:     productFilter.brand,
		Topic:     productFilter.topic,
		Search:    productFilter.search,
		Rating:    productFilter.rating,
	}
	if err := filter.Validate(); err != nil {
		return err
	}

	svc, err := newCatalogService(cfg, logger)
	if err != nil {
		return err
	}
	svc.Initialize(cmd.Context())

	products := usecase.ApplyFilters(svc.Products(), filter)
	printProducts(cmd.OutOrStdout(), fmt.Sprintf("Products (%s)", sourceLabel(svc.Status())), products)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	filters := domain.SearchFilters{
		Sentiment: domain.Sentiment(searchFilter.sentiment),
		Brand:     searchFilter.brand,
	}
	if filters.Sentiment != "" && !filters.Sentiment.Valid() {
		return fmt.Errorf("%w: unknown sentiment %q", domain.ErrInvalidRequest, filters.Sentiment)
	}

	svc, err := newCatalogService(cfg, logger)
	if err != nil {
		return err
	}
	svc.Initialize(cmd.Context())

	query := strings.Join(args, " ")
	results := svc.Search(cmd.Context(), query, filters)
	printProducts(cmd.OutOrStdout(), fmt.Sprintf("Results for %q", query), results)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	svc, err := newCatalogService(cfg, logger)
	if err != nil {
		return err
	}
	svc.Initialize(cmd.Context())

	status := svc.Status()
	stats := svc.ProcessingStats(cmd.Context())

	lastLoad := "never"
	if status.LastLoad != nil {
		lastLoad = status.LastLoad.Format("2006-01-02 15:04:05")
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, titleStyle.Render("Catalog status"))
	printTable(w, []string{"FIELD", "VALUE"}, [][]string{
		{"API", cfg.API.BaseURL},
		{"Source", sourceLabel(status)},
		{"Using remote", strconv.FormatBool(status.UsingRemote)},
		{"Products", strconv.Itoa(status.ProductCount)},
		{"Brands", strconv.Itoa(status.BrandCount)},
		{"Partial failures", strconv.Itoa(status.PartialFailures)},
		{"Last load", lastLoad},
	})

	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Processing"))
	if !stats.Available {
		fmt.Fprintln(w, mutedStyle.Render(stats.Message))
		return nil
	}
	printTable(w, []string{"COUNTER", "VALUE"}, [][]string{
		{"Reviews", strconv.Itoa(stats.TotalReviews)},
		{"Processed sentiments", strconv.Itoa(stats.ProcessedSentiments)},
		{"Topics", strconv.Itoa(stats.TotalTopics)},
		{"Brands", strconv.Itoa(stats.TotalBrands)},
		{"Phones", strconv.Itoa(stats.TotalPhones)},
	})
	return nil
}

func sourceLabel(status domain.Status) string {
	switch status.Source {
	case domain.SourceRemote:
		return "catalog API"
	case domain.SourceFallback:
		return "fallback data"
	default:
		return "not loaded"
	}
}

func printProducts(w io.Writer, title string, products []domain.Product) {
	fmt.Fprintln(w, titleStyle.Render(title))
	if len(products) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No products found"))
		return
	}

	rows := make([][]string, 0, len(products))
	for _, p := range products {
		rows = append(rows, []string{
			p.ID,
			p.Icon + " " + p.Name,
			p.Brand,
			string(p.Sentiment),
			strconv.FormatFloat(p.Rating, 'f', 1, 64),
			strings.Join(p.Topics, ", "),
		})
	}
	printTable(w, []string{"ID", "NAME", "BRAND", "SENTIMENT", "RATING", "TOPICS"}, rows)
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d product(s)", len(products))))
}

// printTable writes left-aligned columns padded to the widest cell
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	writeRow := func(cells []string, style *lipgloss.Style) {
		var sb strings.Builder
		for i, cell := range cells {
			if i >= len(widths) {
				break
			}
			if style != nil {
				cell = style.Render(cell)
			}
			sb.WriteString(cell)
			if i < len(cells)-1 {
				sb.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+2))
			}
		}
		fmt.Fprintln(w, strings.TrimRight(sb.String(), " "))
	}

	writeRow(headers, &headerStyle)
	for _, row := range rows {
		writeRow(row, nil)
	}
}
