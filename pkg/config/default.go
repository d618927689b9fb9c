// Global database config.
package config

// Name of the database.
const DBName = "rexdb"

// Prompt printed by REPL.
const Prompt = DBName + "> "

// The number of frames held by the buffer pool.
const PoolSize = 64

// The K used by the LRU-K replacer when ranking eviction victims.
const ReplacerK = 2

// Default name of the file backing the database.
const DBFileName = "rex.db"

// Return prompt if requested, else "".
func GetPrompt(flag bool) string {
	if flag {
		return Prompt
	}
	return ""
}
