package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the pubsub client.
// It registers the topic command group.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "pubsub",
		Short: "Pubsub client commands",
	}
	root.AddCommand(NewTopicCommand(baseURL))
	return root
}
