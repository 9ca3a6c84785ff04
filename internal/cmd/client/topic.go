package client

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apiclient "github.com/restatedev/pubsub/pkg/client"
)

// NewTopicCommand constructs the `topic` command group and subcommands.
func NewTopicCommand(baseURL BaseURLFunc) *cobra.Command {
	topicCmd := &cobra.Command{Use: "topic", Short: "Topic operations"}

	topicCmd.AddCommand(
		newTopicCreateCommand(baseURL),
		newTopicListCommand(baseURL),
		newTopicPublishCommand(baseURL),
		newTopicPullCommand(baseURL),
		newTopicSubscribeCommand(baseURL),
		newTopicTailCommand(baseURL),
		newTopicTruncateCommand(baseURL),
		newTopicStatsCommand(baseURL),
		newTopicCommitCommand(baseURL),
		newTopicCursorCommand(baseURL),
	)

	return topicCmd
}

// newTopicCreateCommand constructs the `topic create` subcommand.
func newTopicCreateCommand(baseURL BaseURLFunc) *cobra.Command {
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create topic",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			name, _ := cmd.Flags().GetString("name")
			if err := newClient(baseURL).CreateTopic(cmd.Context(), ns, name); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	createCmd.Flags().StringP("namespace", "n", "default", "Namespace")
	createCmd.Flags().String("name", "", "Topic name")
	return createCmd
}

// newTopicListCommand constructs the `topic list` subcommand.
func newTopicListCommand(baseURL BaseURLFunc) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List topics in a namespace",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			topics, err := newClient(baseURL).ListTopics(cmd.Context(), ns)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"namespace": ns, "topics": topics})
		},
	}
	listCmd.Flags().StringP("namespace", "n", "default", "Namespace")
	return listCmd
}

// newTopicPublishCommand constructs the `topic publish` subcommand.
func newTopicPublishCommand(baseURL BaseURLFunc) *cobra.Command {
	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a message to a topic",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			name, _ := cmd.Flags().GetString("topic")
			data, _ := cmd.Flags().GetString("data")
			key, _ := cmd.Flags().GetString("key")
			rawHeaders, _ := cmd.Flags().GetStringArray("header")
			headersJSON, _ := cmd.Flags().GetString("header-json")

			headers := map[string]string{}
			for _, hv := range rawHeaders {
				if hv == "" {
					continue
				}
				parts := strings.SplitN(hv, "=", 2)
				if len(parts) != 2 {
					return fmt.Errorf("invalid --header, expected key=value: %s", hv)
				}
				headers[strings.TrimSpace(parts[0])] = parts[1]
			}
			if headersJSON != "" {
				var m map[string]string
				if err := json.Unmarshal([]byte(headersJSON), &m); err != nil {
					return fmt.Errorf("invalid --header-json: %w", err)
				}
				for k, v := range m {
					headers[k] = v
				}
			}

			offset, id, err := newClient(baseURL).Publish(cmd.Context(), ns, name, []byte(data), headers, key)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			return enc.Encode(map[string]any{"offset": offset, "id": id})
		},
	}
	publishCmd.Flags().StringP("namespace", "n", "default", "Namespace")
	publishCmd.Flags().String("topic", "", "Topic")
	publishCmd.Flags().String("data", "", "Payload data")
	publishCmd.Flags().String("key", "", "Idempotency key (retries return the original offset)")
	publishCmd.Flags().StringArray("header", []string{}, "Message header key=value (repeat)")
	publishCmd.Flags().String("header-json", "", "Headers as JSON object, e.g. '{\"k\":\"v\"}'")
	return publishCmd
}

// newTopicPullCommand constructs the `topic pull` subcommand.
func newTopicPullCommand(baseURL BaseURLFunc) *cobra.Command {
	pullCmd := &cobra.Command{
		Use:   "pull",
		Short: "Pull a batch of messages (long-poll)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			name, _ := cmd.Flags().GetString("topic")
			group, _ := cmd.Flags().GetString("group")
			limit, _ := cmd.Flags().GetInt("limit")
			waitMs, _ := cmd.Flags().GetInt64("wait-ms")

			var opts apiclient.PullOptions
			opts.Group = group
			opts.Limit = limit
			opts.WaitMs = waitMs
			if cmd.Flags().Changed("offset") {
				off, _ := cmd.Flags().GetUint64("offset")
				opts.Offset = &off
			}

			res, err := newClient(baseURL).Pull(cmd.Context(), ns, name, opts)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, m := range res.Messages {
				_ = enc.Encode(decodedMessage(m))
			}
			return enc.Encode(map[string]any{"next_offset": res.NextOffset})
		},
	}
	pullCmd.Flags().StringP("namespace", "n", "default", "Namespace")
	pullCmd.Flags().String("topic", "", "Topic")
	pullCmd.Flags().String("group", "", "Consumer group (cursor fallback start)")
	pullCmd.Flags().Uint64("offset", 0, "Start offset (default: group cursor or tail)")
	pullCmd.Flags().Int("limit", 0, "Max messages per batch (0 = server default)")
	pullCmd.Flags().Int64("wait-ms", 0, "Long-poll wait in ms (0 = server default)")
	return pullCmd
}

// newTopicSubscribeCommand constructs the `topic subscribe` subcommand.
func newTopicSubscribeCommand(baseURL BaseURLFunc) *cobra.Command {
	subscribeCmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Run the long-poll consumer loop",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			name, _ := cmd.Flags().GetString("topic")
			group, _ := cmd.Flags().GetString("group")
			limit, _ := cmd.Flags().GetInt("limit")
			commit, _ := cmd.Flags().GetBool("commit")
			retryMs, _ := cmd.Flags().GetInt64("retry-ms")

			if commit && group == "" {
				return fmt.Errorf("--commit requires --group")
			}

			var opts apiclient.SubscribeOptions
			opts.Group = group
			opts.AutoCommit = commit
			opts.Limit = limit
			opts.RetryInterval = time.Duration(retryMs) * time.Millisecond
			if cmd.Flags().Changed("offset") {
				off, _ := cmd.Flags().GetUint64("offset")
				opts.Offset = &off
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			return newClient(baseURL).Subscribe(cmd.Context(), ns, name, opts, func(m apiclient.Message) error {
				return enc.Encode(decodedMessage(m))
			})
		},
	}
	subscribeCmd.Flags().StringP("namespace", "n", "default", "Namespace")
	subscribeCmd.Flags().String("topic", "", "Topic")
	subscribeCmd.Flags().String("group", "", "Consumer group (durable cursor)")
	subscribeCmd.Flags().Uint64("offset", 0, "Start offset (default: group cursor or tail)")
	subscribeCmd.Flags().Int("limit", 0, "Stop after N messages (0 = infinite)")
	subscribeCmd.Flags().Bool("commit", false, "Commit the group cursor after each message")
	subscribeCmd.Flags().Int64("retry-ms", 0, "Pause before re-pulling after a timeout")
	return subscribeCmd
}

// newTopicTailCommand constructs the `topic tail` subcommand.
func newTopicTailCommand(baseURL BaseURLFunc) *cobra.Command {
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail a topic over SSE (no group, no cursor)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			name, _ := cmd.Flags().GetString("topic")
			from, _ := cmd.Flags().GetString("from")
			limit, _ := cmd.Flags().GetInt("limit")
			filter, _ := cmd.Flags().GetString("filter")

			var opts apiclient.SSEOptions
			if from == "earliest" {
				opts.From = "earliest"
			}
			opts.Limit = limit
			opts.Filter = filter
			if cmd.Flags().Changed("offset") {
				off, _ := cmd.Flags().GetUint64("offset")
				opts.Offset = &off
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			return newClient(baseURL).SubscribeSSE(cmd.Context(), ns, name, "", opts, func(m apiclient.Message) error {
				return enc.Encode(decodedMessage(m))
			})
		},
	}
	tailCmd.Flags().StringP("namespace", "n", "default", "Namespace")
	tailCmd.Flags().String("topic", "", "Topic")
	tailCmd.Flags().String("from", "latest", "Start position: latest|earliest")
	tailCmd.Flags().Uint64("offset", 0, "Explicit start offset")
	tailCmd.Flags().Int("limit", 0, "Stop after N messages (0 = infinite)")
	tailCmd.Flags().String("filter", "", "CEL filter (server-side)")
	return tailCmd
}

// newTopicTruncateCommand constructs the `topic truncate` subcommand.
func newTopicTruncateCommand(baseURL BaseURLFunc) *cobra.Command {
	truncateCmd := &cobra.Command{
		Use:   "truncate",
		Short: "Drop the oldest N messages from a topic",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			name, _ := cmd.Flags().GetString("topic")
			count, _ := cmd.Flags().GetUint64("count")
			confirm, _ := cmd.Flags().GetBool("confirm")

			if name == "" {
				return fmt.Errorf("topic name is required")
			}
			if !confirm {
				return fmt.Errorf("use --confirm to drop up to %d messages from topic %s", count, name)
			}

			head, err := newClient(baseURL).Truncate(cmd.Context(), ns, name, count)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "head:", strconv.FormatUint(head, 10))
			return nil
		},
	}
	truncateCmd.Flags().StringP("namespace", "n", "default", "Namespace")
	truncateCmd.Flags().String("topic", "", "Topic")
	truncateCmd.Flags().Uint64("count", 0, "Number of messages to drop from the head")
	truncateCmd.Flags().Bool("confirm", false, "Confirm the truncate operation")
	return truncateCmd
}

// newTopicStatsCommand constructs the `topic stats` subcommand.
func newTopicStatsCommand(baseURL BaseURLFunc) *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Get topic stats",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			name, _ := cmd.Flags().GetString("topic")
			st, err := newClient(baseURL).Stats(cmd.Context(), ns, name)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
	statsCmd.Flags().StringP("namespace", "n", "default", "Namespace")
	statsCmd.Flags().String("topic", "", "Topic")
	return statsCmd
}

// newTopicCommitCommand constructs the `topic commit` subcommand.
func newTopicCommitCommand(baseURL BaseURLFunc) *cobra.Command {
	commitCmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit a consumer-group cursor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			name, _ := cmd.Flags().GetString("topic")
			group, _ := cmd.Flags().GetString("group")
			offset, _ := cmd.Flags().GetUint64("offset")
			if err := newClient(baseURL).Commit(cmd.Context(), ns, name, group, offset); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	commitCmd.Flags().StringP("namespace", "n", "default", "Namespace")
	commitCmd.Flags().String("topic", "", "Topic")
	commitCmd.Flags().String("group", "", "Consumer group")
	commitCmd.Flags().Uint64("offset", 0, "Next-to-read offset")
	return commitCmd
}

// newTopicCursorCommand constructs the `topic cursor` subcommand.
func newTopicCursorCommand(baseURL BaseURLFunc) *cobra.Command {
	cursorCmd := &cobra.Command{
		Use:   "cursor",
		Short: "Read a consumer-group cursor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			name, _ := cmd.Flags().GetString("topic")
			group, _ := cmd.Flags().GetString("group")
			offset, committed, err := newClient(baseURL).Cursor(cmd.Context(), ns, name, group)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			return enc.Encode(map[string]any{"group": group, "offset": offset, "committed": committed})
		},
	}
	cursorCmd.Flags().StringP("namespace", "n", "default", "Namespace")
	cursorCmd.Flags().String("topic", "", "Topic")
	cursorCmd.Flags().String("group", "", "Consumer group")
	return cursorCmd
}
