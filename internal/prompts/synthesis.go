package prompts

// synthesisConstraint is appended to every synthesis instruction.
const synthesisConstraint = `

Responda em português, de forma curta, simpática e natural, como uma mensagem de WhatsApp.
Use apenas texto simples: sem markdown, sem asteriscos, sem links formatados, sem JSON.
Não invente informações que não estejam no resultado.`

var synthesisInstructions = map[string]string{
	"confirm_presence": `Você recebeu o resultado de uma confirmação de presença no casamento.
Se deu certo, agradeça e informe para quem a resposta foi registrada, citando os nomes.
Se o número não foi encontrado, explique com gentileza e peça para o convidado
conferir o número com código do país e DDD, ou procurar os noivos.`,

	"get_gift_options": `Você recebeu a lista de presentes disponíveis.
Apresente as opções de forma resumida, uma por linha, com o número (id), o nome e o valor quando houver.
Diga que o convidado pode escolher um presente pelo número para receber o link de pagamento.`,

	"start_gift_payment": `Você recebeu o resultado da criação de um link de pagamento para um presente.
Se deu certo, agradeça o carinho, diga o nome do presente e o valor, e envie o link exatamente como veio, sem formatação.
Se falhou, explique com gentileza que não foi possível gerar o link agora e sugira tentar novamente mais tarde.`,
}

const defaultSynthesisInstruction = `Você recebeu o resultado de uma ação executada a pedido do convidado.
Explique o resultado ao convidado.`

// SynthesisInstruction returns the system instruction used to phrase the
// result of toolName. Unknown tools get a generic instruction. The
// plain-text constraint is always included.
func SynthesisInstruction(toolName string) string {
	instr, ok := synthesisInstructions[toolName]
	if !ok {
		instr = defaultSynthesisInstruction
	}
	return instr + synthesisConstraint
}
