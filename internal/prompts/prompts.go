package prompts

// ============================================================================
// Shared Lexicons
// ============================================================================

// ComplexKeywords is the shared lexicon of terms that indicate a request needs
// the larger model: analytical verbs, legal/financial vocabulary, code work,
// and deep-reasoning openers. English, French, and Arabic forms are all
// covered since production traffic mixes the three.
var ComplexKeywords = []string{
	// Analytical / reasoning verbs
	"analyze", "analyse", "compare", "explain", "detail", "evaluate",
	"strategy", "strategic", "review", "summarize", "synthesis",
	"expliquer", "comparer", "détailler", "évaluer", "stratégie", "résumer",
	"حلل", "قارن", "ناقش", "اشرح", "استنتج", "فرق", "استراتيجية",

	// Legal / financial / compliance
	"contract", "legal", "tax", "accounting", "compliance", "invoice",
	"clause", "audit", "budget", "contrat", "juridique", "fiscal",
	"comptable", "financier",
	"قانون", "عقد", "ضريبة", "محاسبة", "ميزانية", "مالية",

	// Code and technical work
	"function", "class", "debug", "error", "exception", "implement",
	"refactor", "algorithm", "query", "script", "sql", "api",
	"كود", "برمجة", "خوارزمية",

	// Deep reasoning questions
	"why", "how does", "what are the reasons", "what is the difference",
	"pourquoi", "comment est-ce", "quelles sont les raisons",
	"لماذا", "كيف يمكن", "ما هي الأسباب", "ما الفرق",
}

// SimpleKeywords is the lexicon of openers that mark short conversational or
// factual queries safe for the small model.
var SimpleKeywords = []string{
	// Greetings and one-word responses
	"hello", "hi", "thanks", "thank you", "yes", "no", "okay", "bye",
	"good morning", "bonjour", "salut", "merci", "oui", "non", "bonsoir",
	"salam", "مرحبا", "شكرا", "صباح", "مساء", "نعم", "لا",

	// Short factual questions
	"what is", "who is", "where is", "when is", "how many", "is it",
	"qu'est-ce que", "c'est quoi", "qui est", "quand", "où",
	"ما", "من", "متى", "أين", "كم", "هل",

	// Simple list or enumeration requests
	"list", "give me", "show me", "name", "liste", "donne-moi", "cite",
	"قائمة", "اذكر", "عدد", "هات",
}

// ============================================================================
// RAG Prompts
// ============================================================================

// RAGSystemPreamble instructs the model to stay grounded in retrieved context.
const RAGSystemPreamble = `You are an AI assistant. Answer the question based ONLY on the provided context.
If the context doesn't contain enough information, say so clearly.
Reference specific documents when applicable.`

// RAGContextHeader opens the retrieved-context block of a RAG prompt.
const RAGContextHeader = "Context from knowledge base:"

// RAGDocumentFormat renders one retrieved chunk. Arguments: 1-based rank,
// relevance score, chunk text.
const RAGDocumentFormat = "Document %d (relevance: %.2f):\n%s"

// RAGQuestionFormat closes the prompt with the user's question.
const RAGQuestionFormat = "Question: %s\n\nPlease provide a comprehensive answer based on the context above."
