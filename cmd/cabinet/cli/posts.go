package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cabinetdiet/cabinet/internal/client"
	"github.com/cabinetdiet/cabinet/internal/model"
)

func newPostsCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:     "posts",
		Aliases: []string{"post"},
		Short:   "Manage blog posts on a running server",
		Long: `List, read, create, update and delete blog posts through the HTTP API.
Reads are public; writes need a session from "cabinet login".`,
	}

	cmd.PersistentFlags().StringVar(&server, "server", "", "Server URL (default: saved session, then the local config)")

	cmd.AddCommand(newPostsListCmd(&server))
	cmd.AddCommand(newPostsGetCmd(&server))
	cmd.AddCommand(newPostsCreateCmd(&server))
	cmd.AddCommand(newPostsUpdateCmd(&server))
	cmd.AddCommand(newPostsDeleteCmd(&server))
	cmd.AddCommand(newPostsResetCmd(&server))

	return cmd
}

// ---------- posts list ----------

func newPostsListCmd(server *string) *cobra.Command {
	var (
		opts       client.ListOptions
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List published posts, newest first",
		Aliases: []string{"ls"},
		Example: `  cabinet posts list
  cabinet posts list --category nutrition
  cabinet posts list --featured --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := remoteClient(*server, false)
			if err != nil {
				return err
			}
			posts, err := c.ListPosts(context.Background(), opts)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), posts)
			}
			printPostTable(cmd.OutOrStdout(), posts)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Category, "category", "", "Category slug filter (\"all\" for every post)")
	cmd.Flags().BoolVar(&opts.Featured, "featured", false, "Only featured posts")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Only the N most recent posts")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func printPostTable(w io.Writer, posts []model.Post) {
	if len(posts) == 0 {
		fmt.Fprintln(w, "No posts.")
		return
	}
	fmt.Fprintf(w, "%-4s %-40s %-20s %-14s %s\n", "ID", "SLUG", "CATEGORY", "PUBLISHED", "READ")
	fmt.Fprintf(w, "%-4s %-40s %-20s %-14s %s\n", "--", "----", "--------", "---------", "----")
	for _, p := range posts {
		slug := p.Slug
		if p.Featured {
			slug = "* " + slug
		}
		fmt.Fprintf(w, "%-4d %-40s %-20s %-14s %d min\n",
			p.ID, truncate(slug, 40), truncate(p.Category, 20), published(p.PublishedAt), p.ReadingTime)
	}
}

// published renders a YYYY-MM-DD date relative to now.
func published(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return humanize.Time(t)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// ---------- posts get ----------

func newPostsGetCmd(server *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id|slug>",
		Short: "Print one post as JSON",
		Long: `Print one post as JSON. A numeric argument is looked up by id, which needs a
session; anything else is looked up by slug.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, byID := parseID(args[0])
			c, err := remoteClient(*server, byID)
			if err != nil {
				return err
			}
			var post *model.Post
			if byID {
				post, err = c.Post(context.Background(), id)
			} else {
				post, err = c.PostBySlug(context.Background(), args[0])
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), post)
		},
	}
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil && id > 0
}

// ---------- posts create / update ----------

// postFlags maps command-line flags onto a PostInput. Only flags the user set
// are carried over, so an update leaves the other fields alone.
type postFlags struct {
	file            string
	title           string
	slug            string
	excerpt         string
	content         string
	contentFile     string
	coverImage      string
	category        string
	author          string
	publishedAt     string
	metaTitle       string
	metaDescription string
	featured        bool
}

func (f *postFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.file, "file", "f", "", "JSON file with the post fields (\"-\" for stdin)")
	fl.StringVar(&f.title, "title", "", "Title")
	fl.StringVar(&f.slug, "slug", "", "URL slug (derived from the title when omitted)")
	fl.StringVar(&f.excerpt, "excerpt", "", "Short summary")
	fl.StringVar(&f.content, "content", "", "HTML body")
	fl.StringVar(&f.contentFile, "content-file", "", "Read the HTML body from a file (\"-\" for stdin)")
	fl.StringVar(&f.coverImage, "cover-image", "", "Cover image URL")
	fl.StringVar(&f.category, "category", "", "Category name")
	fl.StringVar(&f.author, "author", "", "Author name")
	fl.StringVar(&f.publishedAt, "published-at", "", "Publication date (YYYY-MM-DD)")
	fl.StringVar(&f.metaTitle, "meta-title", "", "SEO title")
	fl.StringVar(&f.metaDescription, "meta-description", "", "SEO description")
	fl.BoolVar(&f.featured, "featured", false, "Feature the post on the home page")
	cmd.MarkFlagsMutuallyExclusive("content", "content-file")
}

func (f *postFlags) input(cmd *cobra.Command) (model.PostInput, error) {
	var in model.PostInput
	if f.file != "" {
		data, err := readInput(cmd, f.file)
		if err != nil {
			return in, err
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return in, fmt.Errorf("parse %s: %w", f.file, err)
		}
	}

	fl := cmd.Flags()
	set := func(name string, dst **string, v string) {
		if fl.Changed(name) {
			*dst = &v
		}
	}
	set("title", &in.Title, f.title)
	set("slug", &in.Slug, f.slug)
	set("excerpt", &in.Excerpt, f.excerpt)
	set("content", &in.Content, f.content)
	set("cover-image", &in.CoverImage, f.coverImage)
	set("category", &in.Category, f.category)
	set("author", &in.Author, f.author)
	set("published-at", &in.PublishedAt, f.publishedAt)
	set("meta-title", &in.MetaTitle, f.metaTitle)
	set("meta-description", &in.MetaDescription, f.metaDescription)
	if fl.Changed("featured") {
		featured := f.featured
		in.Featured = &featured
	}
	if f.contentFile != "" {
		data, err := readInput(cmd, f.contentFile)
		if err != nil {
			return in, err
		}
		content := string(data)
		in.Content = &content
	}
	return in, nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func newPostsCreateCmd(server *string) *cobra.Command {
	var flags postFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a post",
		Long: `Create a post. Title, excerpt, content and category are required, either as
flags or in the --file JSON document; flags override the file.`,
		Example: `  cabinet posts create --title "Les légumineuses" --excerpt "..." \
    --category Nutrition --content-file article.html
  cabinet posts create --file post.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := flags.input(cmd)
			if err != nil {
				return err
			}
			c, err := remoteClient(*server, true)
			if err != nil {
				return err
			}
			post, err := c.CreatePost(context.Background(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created post %d (%s).\n", post.ID, post.Slug)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newPostsUpdateCmd(server *string) *cobra.Command {
	var flags postFlags

	cmd := &cobra.Command{
		Use:     "update <id>",
		Short:   "Update fields of a post",
		Example: `  cabinet posts update 3 --featured
  cabinet posts update 3 --content-file article.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, ok := parseID(args[0])
			if !ok {
				return fmt.Errorf("invalid post id %q", args[0])
			}
			in, err := flags.input(cmd)
			if err != nil {
				return err
			}
			c, err := remoteClient(*server, true)
			if err != nil {
				return err
			}
			post, err := c.UpdatePost(context.Background(), id, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated post %d (%s).\n", post.ID, post.Slug)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

// ---------- posts delete ----------

func newPostsDeleteCmd(server *string) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a post",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, ok := parseID(args[0])
			if !ok {
				return fmt.Errorf("invalid post id %q", args[0])
			}
			c, err := remoteClient(*server, true)
			if err != nil {
				return err
			}
			if err := c.DeletePost(context.Background(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted post %d.\n", id)
			return nil
		},
	}
}

// ---------- posts reset ----------

func newPostsResetCmd(server *string) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Replace every post with the seed articles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reset deletes every post; pass --yes to confirm")
			}
			c, err := remoteClient(*server, true)
			if err != nil {
				return err
			}
			posts, err := c.ResetPosts(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset to %d seed posts.\n", len(posts))
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")

	return cmd
}

// ---------- categories ----------

func newCategoriesCmd() *cobra.Command {
	var (
		server     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List post categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := remoteClient(server, false)
			if err != nil {
				return err
			}
			cats, err := c.Categories(context.Background())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, cats)
			}
			fmt.Fprintf(out, "%-24s %-24s %s\n", "ID", "NAME", "COLOR")
			for _, cat := range cats {
				fmt.Fprintf(out, "%-24s %-24s %s\n", cat.ID, cat.Name, cat.Color)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "Server URL (default: saved session, then the local config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
