package provider

// SystemPrompt steers every backend toward synthesizable, standard HDL.
const SystemPrompt = "You are a hardware design assistant. Generate VHDL or Verilog code for the given circuit description. " +
	"When generating VHDL, use the IEEE.NUMERIC_STD.ALL library for arithmetic operations and avoid using the " +
	"non-standard IEEE.STD_LOGIC_UNSIGNED or IEEE.STD_LOGIC_ARITH libraries. Always include proper entity/module " +
	"declarations and architecture/implementation blocks. Return the code in a single fenced code block tagged " +
	"with its language. Ensure the code is syntactically correct and follows best practices."

// chatMessages builds the system + user message pair.
func chatMessages(prompt string) []ChatMessage {
	return []ChatMessage{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: prompt},
	}
}
