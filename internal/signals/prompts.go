package signals

// Each analyzer shares one output contract and differs only in what it is
// asked to scrutinize. The model must answer with a bare JSON object:
// {"verdict": "true|false|unclear", "confidence": 0.0-1.0,
//  "flags": ["..."], "rationale": "..."}.

const outputContract = `Respond with a single JSON object and nothing else:
{"verdict": "true" | "false" | "unclear", "confidence": <number between 0 and 1>, "flags": [<short strings naming concrete problems found>], "rationale": "<one or two sentences>"}
Use "unclear" whenever the claim cannot be judged from what you were given. Do not invent evidence.`

const logicConsistencyPrompt = `You check factual claims for internal logical consistency.

Claim:
%s

Assess only the claim's internal logic: contradictions, impossible timelines, category errors, conclusions that do not follow from their own premises. Do not research external facts.

` + outputContract

const citationEvidencePrompt = `You check whether a factual claim is supported by the sources it cites.

Claim:
%s

Cited URLs:
%s

Assess whether the cited sources, as described by their URLs and usage, plausibly support the claim. Flag citations that are unrelated, self-referential, or known link farms. If no citations are given, the verdict is "unclear" with a "no_citations" flag.

` + outputContract

const sourceCredibilityPrompt = `You assess the credibility of where a factual claim originated.

Claim:
%s

Origin platform: %s
Origin author: %s

Judge the track record implied by the origin: established outlet, anonymous account, known misinformation vector. Absence of origin information means "unclear".

` + outputContract

const socialEvidencePrompt = `You assess community reception signals around a factual claim.

Claim:
%s

Origin platform: %s

Based on how claims of this shape typically spread and get corrected on this platform, judge whether community response patterns support or undermine it. Without platform context, answer "unclear".

` + outputContract

const mediaForensicsPrompt = `You assess whether media attached to a claim shows signs of manipulation.

Claim:
%s

Attached images: %s
Attached videos: %s

Judge from the claim text and attachment descriptions whether the media is plausibly authentic, recycled from an unrelated event, or synthetic. Flag specific concerns ("recycled_media", "synthetic_suspected", "metadata_mismatch").

` + outputContract

const propagationPatternPrompt = `You assess how a factual claim is spreading.

Claim:
%s

Origin platform: %s

Judge whether the described spread resembles organic sharing or coordinated amplification (burst posting, copy-paste networks, bot-like cadence). Without propagation context, answer "unclear".

` + outputContract
