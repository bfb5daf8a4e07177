package bot

import "fmt"

const (
	waitText       = "⏳ Generating a response... (~30s)"
	apologyText    = "❌ Sorry, something went wrong while generating the response."
	exportErrText  = "Sorry, something went wrong while exporting the statistics."
	noExportText   = "No statistics to export yet."
	emptyChainText = "❌ Nothing to answer: the conversation has no text left."
	unknownModel   = "❌ That model is not available."
	clearedText    = "Conversation history cleared."
	statsChunk     = 1990
)

func refusalText(ownerMention string) string {
	if ownerMention == "" {
		return "Sorry, I only answer to my owner. 🔒"
	}
	return fmt.Sprintf("Sorry, I only answer to my owner %s. 🔒", ownerMention)
}

func askUsage(sigil string) string {
	return fmt.Sprintf("Usage: %sask [model] message\nAvailable models: haiku (older), sonnet, opus", sigil)
}

func unknownCommand(sigil string) string {
	return fmt.Sprintf("Unknown command. Try %shelp.", sigil)
}

func helpText(s string) string {
	return fmt.Sprintf(`**Available commands**

🤖 Conversation:
- `+"`%[1]sask <message>`"+` - ask Claude 3.5 Haiku (default)
- `+"`%[1]sask haiku <message>`"+` - ask Claude 3 Haiku (older)
- `+"`%[1]sask sonnet <message>`"+` - ask Claude Sonnet
- `+"`%[1]sask opus <message>`"+` - ask Claude Opus
- Reply to any message with `+"`%[1]sask [message]`"+` to continue that thread
- `+"`%[1]sclear`"+` - clear this channel's conversation history

📊 Statistics:
- `+"`%[1]sstats [day|week|all]`"+` - usage report
- `+"`%[1]sexport`"+` - export all statistics as CSV

🔧 System prompts:
%[2]s

ℹ️ Other:
- `+"`%[1]stest`"+` - API latency test
- `+"`%[1]shelp`"+` - this message

Note: the bot only answers to its owner.`, s, sysCommands(s))
}

func sysCommands(s string) string {
	return fmt.Sprintf("- `%[1]ssys create <name> <prompt>` - create or update a system prompt\n"+
		"- `%[1]ssys list` - list system prompts\n"+
		"- `%[1]ssys show <name>` - show a system prompt\n"+
		"- `%[1]ssys use <name>` - activate a system prompt\n"+
		"- `%[1]ssys clear` - deactivate the system prompt\n"+
		"- `%[1]ssys delete <name>` - delete a system prompt", s)
}

func sysHelp(s string) string {
	return "**System prompt management**\n\n" + sysCommands(s)
}
