package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/fatih/color"
)

const defaultHrefPrefix = "https://fuckingfast.co"

func main() {
	var (
		outputDir   string
		hrefPrefix  string
		urlsFile    string
		assumeYes   bool
		showSysInfo bool
	)

	flag.StringVar(&outputDir, "o", "downloads", "Output directory for downloaded files")
	flag.StringVar(&hrefPrefix, "p", defaultHrefPrefix, "Href prefix that marks a download link on the page")
	flag.StringVar(&urlsFile, "f", "", "Path to a text file of direct download URLs (skips page scraping)")
	flag.BoolVar(&assumeYes, "y", false, "Download every link without asking")
	flag.BoolVar(&debugMode, "debug", false, "Write debug logs to log.log")
	flag.BoolVar(&showSysInfo, "t", false, "Show system hardware info and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <repack page URL>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	initLogging()

	if showSysInfo {
		ShowSystemInfo()
		return
	}

	var successes, failures int

	if urlsFile != "" {
		urls, err := readURLFile(urlsFile)
		if err != nil {
			fatal("reading %s: %v", urlsFile, err)
		}
		if len(urls) == 0 {
			fmt.Println("No URLs found in the file.")
			return
		}
		for i, u := range urls {
			fmt.Printf("(%d/%d) %s\n", i+1, len(urls), u)
			if err := downloadOne(u, outputDir); err != nil {
				color.Red("  failed: %s", shortenError(err, 120))
				failures++
				continue
			}
			successes++
		}
	} else {
		pageURL := flag.Arg(0)
		if pageURL == "" {
			flag.Usage()
			os.Exit(1)
		}

		items, err := Discover(pageURL, hrefPrefix)
		if err != nil {
			fatal("scraping %s: %v", pageURL, err)
		}
		if len(items) == 0 {
			color.Yellow("No download links matching %q found on the page.", hrefPrefix)
			return
		}

		color.Cyan("Found %d download links:", len(items))
		for i, item := range items {
			label := item.Text
			if label == "" {
				label = item.Href
			}
			fmt.Printf("  %2d. %s\n", i+1, label)
		}

		selected := items
		if !assumeYes {
			selected, err = promptSelection(bufio.NewReader(os.Stdin), items)
			if err != nil {
				fatal("reading selection: %v", err)
			}
			if len(selected) == 0 {
				fmt.Println("Nothing selected.")
				return
			}
		}

		for i, item := range selected {
			label := item.Text
			if label == "" {
				label = item.Href
			}
			fmt.Printf("(%d/%d) %s\n", i+1, len(selected), label)

			resourceURL, err := ResolveNested(item.Href)
			if err != nil {
				if errors.Is(err, ErrNoRedirect) {
					color.Yellow("  no download link on page, skipping")
				} else {
					color.Red("  failed: %s", shortenError(err, 120))
				}
				failures++
				continue
			}
			if err := downloadOne(resourceURL, outputDir); err != nil {
				color.Red("  failed: %s", shortenError(err, 120))
				failures++
				continue
			}
			successes++
		}
	}

	fmt.Println()
	if failures == 0 {
		color.Green("Done: %d downloaded.", successes)
		return
	}
	color.Red("Done: %d downloaded, %d failed.", successes, failures)
	os.Exit(1)
}

// downloadOne runs a single download with a progress bar attached. The
// bar is created on the first progress sample, so a skipped (already
// present) file draws nothing.
func downloadOne(resourceURL, outputDir string) error {
	var bar *pb.ProgressBar

	path, err := Download(resourceURL, outputDir, func(p Progress) {
		if bar == nil {
			bar = newDownloadBar(p.Total)
		}
		bar.SetCurrent(p.Downloaded)
		if p.RateBps < 0 {
			// Final sample, the file is already renamed into place.
			bar.Finish()
			return
		}
		bar.Set("speed", formatSpeed(p.RateBps))
		bar.Set("eta", calculateETA(p.RateBps, p.Total, p.Downloaded))
	}, nil)
	if err != nil {
		if bar != nil {
			bar.Finish()
		}
		return err
	}

	if bar == nil {
		color.Yellow("  already exists: %s", path)
	} else {
		color.Green("  saved: %s", path)
	}
	return nil
}

func newDownloadBar(total int64) *pb.ProgressBar {
	if total < 0 {
		total = 0
	}
	bar := pb.New64(total)
	bar.SetTemplate(`  {{ counters . }} {{ bar . }} {{ percent . }} {{ string . "speed" }} ETA: {{ string . "eta" }}`)
	bar.Set(pb.Bytes, true)
	bar.Set("speed", "--- B/s")
	bar.Set("eta", "N/A")
	bar.SetRefreshRate(200 * time.Millisecond)
	bar.Start()
	return bar
}

func readURLFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		u := strings.TrimSpace(scanner.Text())
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls, scanner.Err()
}

// promptSelection asks which links to fetch. Accepts "all" (or an empty
// line), comma-separated indexes and ranges, e.g. "1,3,5-8".
func promptSelection(reader *bufio.Reader, items []LinkItem) ([]LinkItem, error) {
	fmt.Print("Which files? [all]: ")
	line, err := reader.ReadString('\n')
	if err != nil {
		return nil, err
	}

	indexes, err := parseSelection(line, len(items))
	if err != nil {
		return nil, err
	}
	selected := make([]LinkItem, 0, len(indexes))
	for _, i := range indexes {
		selected = append(selected, items[i-1])
	}
	return selected, nil
}

// parseSelection turns user input into sorted unique 1-based indexes.
func parseSelection(input string, n int) ([]int, error) {
	input = strings.TrimSpace(strings.ToLower(input))
	if input == "" || input == "all" {
		all := make([]int, n)
		for i := range all {
			all[i] = i + 1
		}
		return all, nil
	}

	picked := make(map[int]bool)
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi := part, part
		if dash := strings.Index(part, "-"); dash > 0 {
			lo, hi = strings.TrimSpace(part[:dash]), strings.TrimSpace(part[dash+1:])
		}
		from, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("invalid selection %q", part)
		}
		to, err := strconv.Atoi(hi)
		if err != nil {
			return nil, fmt.Errorf("invalid selection %q", part)
		}
		if from > to || from < 1 || to > n {
			return nil, fmt.Errorf("selection %q out of range 1-%d", part, n)
		}
		for i := from; i <= to; i++ {
			picked[i] = true
		}
	}

	indexes := make([]int, 0, len(picked))
	for i := 1; i <= n; i++ {
		if picked[i] {
			indexes = append(indexes, i)
		}
	}
	return indexes, nil
}

func fatal(format string, args ...any) {
	color.Red(format, args...)
	os.Exit(1)
}
