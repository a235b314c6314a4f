package extract

const systemPrompt = `You are a maintainer's assistant. You read GitHub issue,
pull request, and discussion conversations and surface the knowledge buried in
them. Be concrete and quote the conversation where it helps. Never invent
details that are not in the text.`

const extractionPrompt = `Read this GitHub %s conversation and extract what a
maintainer would want to keep.

CONVERSATION:
%s

Extract the following:
1. SUMMARY: what the conversation is about and how it ended, in 2-3 sentences.
2. DECISIONS: design or process decisions that were made, and who made them.
3. ACTION ITEMS: concrete follow-ups that were promised or requested, with owners if named.
4. OPEN QUESTIONS: anything raised but left unresolved.

Use those four headings. Write "none" under a heading when the conversation
has nothing for it.`
