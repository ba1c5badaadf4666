package wordcloud

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/bbalet/stopwords"
	"github.com/psykhi/wordclouds"
	"github.com/spf13/cobra"
	"github.com/zvonler/wallspider/cli/crawl"
	"github.com/zvonler/wallspider/configuration"
	"github.com/zvonler/wallspider/graph"
	"github.com/zvonler/wallspider/model"
	"github.com/zvonler/wallspider/utils"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v2"
)

var (
	nodeType      string
	sinceDaysAgo  int
	confPath      string
	outputPath    string
	stopwordsPath string
	maxWords      int
)

// DefaultColors is the palette used when the conf file names none.
var DefaultColors = []color.RGBA{
	{0x1b, 0x1b, 0x1b, 0xff},
	{0x48, 0x48, 0x4B, 0xff},
	{0x59, 0x3a, 0xee, 0xff},
	{0x65, 0xCD, 0xFA, 0xff},
	{0x70, 0xD6, 0xBF, 0xff},
}

// Conf is the YAML layout of the --conf file.
type Conf struct {
	FontMaxSize     int    `yaml:"font_max_size"`
	FontMinSize     int    `yaml:"font_min_size"`
	RandomPlacement bool   `yaml:"random_placement"`
	FontFile        string `yaml:"font_file"`
	Colors          []color.RGBA
	BackgroundColor color.RGBA `yaml:"background_color"`
	Width           int
	Height          int
	Mask            MaskConf
	SizeFunction    *string `yaml:"size_function"`
	Debug           bool
}

// MaskConf names a PNG whose pixels of Color are kept free of words.
type MaskConf struct {
	File  string
	Color color.RGBA
}

// DefaultConf applies to every key the conf file leaves out.
var DefaultConf = Conf{
	FontMaxSize:     700,
	FontMinSize:     10,
	FontFile:        "./fonts/roboto/Roboto-Regular.ttf",
	Colors:          DefaultColors,
	BackgroundColor: color.RGBA{255, 255, 255, 255},
	Width:           4096,
	Height:          4096,
}

func NewCommand() *cobra.Command {
	wordcloudCommand := &cobra.Command{
		Use:   "wordcloud [--type T] <node_id>...",
		Short: "Renders a word cloud of the messages under one or more nodes",
		Args:  cobra.MinimumNArgs(1),
		Example: "  # Word cloud of a week of posts\n" +
			"  " + os.Args[0] + " wordcloud --conf wordcloud.yaml -o cocacola.png cocacola",
		Run: runWordcloudCommand,
	}

	wordcloudCommand.Flags().StringVarP(&nodeType, "type", "t", string(model.NodeTypePage), "Node type: page, post or comment")
	wordcloudCommand.Flags().IntVar(&sinceDaysAgo, "since-days-ago", 0, "Only children from the last N days")
	wordcloudCommand.Flags().StringVar(&confPath, "conf", "wordcloud.yaml", "Word cloud YAML config; paths in it are relative to its directory")
	wordcloudCommand.Flags().StringVarP(&outputPath, "output", "o", "wordcloud.png", "PNG file to write")
	wordcloudCommand.Flags().StringVar(&stopwordsPath, "stopwords", "", "Extra newline-separated English stop words")
	wordcloudCommand.Flags().IntVar(&maxWords, "max-words", 200, "Most frequent words to draw")

	return wordcloudCommand
}

var (
	wordRe = regexp.MustCompile(`\p{L}+`)
	lower  = cases.Lower(language.Und)
)

// Words counts the words of at least three letters in the records' messages
// after stop word removal and keeps the limit most frequent.
func Words(records []model.Record, limit int) map[string]int {
	counts := map[string]int{}
	for _, r := range records {
		relevant := stopwords.CleanString(lower.String(r.Message), "en", true)
		for _, w := range wordRe.FindAllString(relevant, -1) {
			if utf8.RuneCountInString(w) >= 3 {
				counts[w]++
			}
		}
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if limit > 0 && len(words) > limit {
		for _, w := range words[limit:] {
			delete(counts, w)
		}
	}
	return counts
}

// LoadConf reads path over DefaultConf. A missing file yields the defaults.
func LoadConf(path string) (Conf, error) {
	conf := DefaultConf
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return conf, nil
	} else if err != nil {
		return conf, err
	}
	if err := yaml.Unmarshal(content, &conf); err != nil {
		return conf, fmt.Errorf("decoding %s: %w", path, err)
	}
	return conf, nil
}

// resolve makes the font and mask paths relative to dir.
func (c Conf) resolve(dir string) Conf {
	if c.FontFile != "" && !filepath.IsAbs(c.FontFile) {
		c.FontFile = filepath.Join(dir, c.FontFile)
	}
	if c.Mask.File != "" && !filepath.IsAbs(c.Mask.File) {
		c.Mask.File = filepath.Join(dir, c.Mask.File)
	}
	return c
}

func (c Conf) options() []wordclouds.Option {
	var boxes []*wordclouds.Box
	if c.Mask.File != "" {
		boxes = wordclouds.Mask(c.Mask.File, c.Width, c.Height, c.Mask.Color)
	}

	colors := make([]color.Color, 0, len(c.Colors))
	for _, col := range c.Colors {
		colors = append(colors, col)
	}

	opts := []wordclouds.Option{
		wordclouds.FontFile(c.FontFile),
		wordclouds.FontMaxSize(c.FontMaxSize),
		wordclouds.FontMinSize(c.FontMinSize),
		wordclouds.Colors(colors),
		wordclouds.MaskBoxes(boxes),
		wordclouds.Height(c.Height),
		wordclouds.Width(c.Width),
		wordclouds.RandomPlacement(c.RandomPlacement),
		wordclouds.BackgroundColor(c.BackgroundColor),
	}
	if c.SizeFunction != nil {
		opts = append(opts, wordclouds.WordSizeFunction(*c.SizeFunction))
	}
	if c.Debug {
		opts = append(opts, wordclouds.Debug())
	}
	return opts
}

// Draw renders words with conf. The font file must exist.
func Draw(words map[string]int, conf Conf) (image.Image, error) {
	exists, err := utils.PathExists(conf.FontFile)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("font file %q does not exist", conf.FontFile)
	}
	return wordclouds.NewWordcloud(words, conf.options()...).Draw(), nil
}

func runWordcloudCommand(cmd *cobra.Command, args []string) {
	if stopwordsPath != "" {
		stopwords.LoadStopWordsFromFile(stopwordsPath, "en", "\n")
	}

	conf, err := LoadConf(confPath)
	if err != nil {
		log.Fatal(err)
	}
	conf = conf.resolve(filepath.Dir(confPath))

	cfg, err := configuration.Current()
	if err != nil {
		log.Fatal(err)
	}
	logger := cfg.NewLogger(os.Stderr)
	crawler, err := cfg.NewCrawler(logger)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	targets := crawl.Targets(args, nodeType, model.CrawlOptions{SinceDaysAgo: sinceDaysAgo})
	results, err := graph.CrawlMany(ctx, crawler, targets, cfg.Concurrency)
	if err != nil {
		log.Fatal(err)
	}

	var records []model.Record
	for _, r := range results {
		records = append(records, r.Records...)
	}
	words := Words(records, maxWords)
	logger.Info("drawing word cloud", "records", len(records), "words", len(words))

	start := time.Now()
	img, err := Draw(words, conf)
	if err != nil {
		log.Fatal(err)
	}

	outputFile, err := os.Create(outputPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := png.Encode(outputFile, img); err != nil {
		outputFile.Close()
		log.Fatal(err)
	}
	if err := outputFile.Close(); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Wrote %s in %v\n", outputPath, time.Since(start).Round(time.Millisecond))
}
