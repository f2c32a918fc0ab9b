package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"truthguard/internal/app"
	"truthguard/internal/errs"
)

func newAnalyzeCmd(cfgPath *string) *cobra.Command {
	var file string
	var rateAfter bool

	cmd := &cobra.Command{
		Use:   "analyze [--file article.txt]",
		Short: "Classify article text as credible or fake",
		Long: "Reads article text from --file or stdin, submits it for " +
			"classification, and prints the verdict. With --rate, waits for " +
			"the feedback prompt and asks for a 1-5 rating.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := readArticle(file)
			if err != nil {
				return err
			}

			prompts := make(chan string, 1)
			a, err := buildApp(*cfgPath, func(id string) { prompts <- id })
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Analyze(cmd.Context(), text)
			if err != nil {
				if errors.Is(err, errs.ErrQuotaBlocked) {
					return fmt.Errorf("%w\nrun 'truthguard signup' to keep going", err)
				}
				return err
			}
			fmt.Printf("verdict: %s (%.1f%% confidence)\n", result.Label, result.Confidence*100)
			fmt.Printf("analysis id: %s\n", result.PredictionID)

			if !rateAfter {
				a.ClearAnalysis()
				return nil
			}
			select {
			case id := <-prompts:
				return promptForRating(cmd.Context(), a, id)
			case <-time.After(30 * time.Second):
				return nil
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "read article text from a file instead of stdin")
	cmd.Flags().BoolVar(&rateAfter, "rate", false, "wait for the feedback prompt and rate the result")
	return cmd
}

// promptForRating asks for a 1-5 rating on stdin and submits it. Guests
// are told to sign in instead of being asked for a rating that could never
// be submitted.
func promptForRating(ctx context.Context, a *app.App, id string) error {
	if err := a.PromptForRating(id); err != nil {
		a.DismissPrompt()
		fmt.Fprintln(os.Stderr, "rating requires an account: run 'truthguard login' or 'truthguard signup'")
		return nil
	}
	fmt.Fprint(os.Stderr, "was this analysis helpful? rate 1-5 (enter to skip): ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read rating: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		a.DismissPrompt()
		return nil
	}
	rating, err := strconv.Atoi(line)
	if err != nil {
		return fmt.Errorf("rating must be a number: %w", err)
	}
	if err := a.Rate(ctx, id, rating); err != nil {
		return err
	}
	fmt.Println("thanks for the feedback")
	return nil
}

func newRateCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rate <analysis-id> <rating>",
		Short: "Rate a prior analysis from 1 to 5",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("rating must be a number: %w", err)
			}

			a, err := buildApp(*cfgPath, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Rate(cmd.Context(), args[0], rating); err != nil {
				return err
			}
			fmt.Println("thanks for the feedback")
			return nil
		},
	}
}

func newNewsCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "news",
		Short: "Show current headlines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(*cfgPath, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.News(cmd.Context())
			if err != nil {
				return err
			}
			for _, it := range items {
				if it.Source != "" {
					fmt.Printf("[%s] %s\n    %s\n", it.Source, it.Title, it.Link)
				} else {
					fmt.Printf("%s\n    %s\n", it.Title, it.Link)
				}
			}
			return nil
		},
	}
}

func newHistoryCmd(cfgPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List your past analyses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(*cfgPath, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, r := range records {
				rating := "-"
				if r.Rating != nil {
					rating = strconv.Itoa(*r.Rating)
				}
				fmt.Printf("%s  %-4s  %.0f%%  rating:%s  %s\n",
					r.CreatedAt.Local().Format("2006-01-02 15:04"),
					r.Label, r.Confidence*100, rating, r.Excerpt)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of entries")
	return cmd
}

// readArticle loads the text to analyze from a file or stdin.
func readArticle(file string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	fmt.Fprintln(os.Stderr, "paste article text, then press Ctrl-D:")
	data, err := io.ReadAll(bufio.NewReader(os.Stdin))
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}
