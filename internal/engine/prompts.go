package engine

const sqlPromptTemplate = `Query: %s

You are an agent that writes SQL for a relational database.
Analyse the question and produce a single syntactically correct SQL query based only on this table and column metadata:
%s

The query must respect the structure of the metadata. If the question mentions a table or column that does not exist, rewrite the query to use what does exist.
Reply with the SQL only. Do not add explanations, markdown, triple backticks or brackets around it.

Rules:
1. Use only existing tables and columns
2. Prefer explicit JOINs over implicit ones
3. Include the WHERE clauses the question needs
4. Return plain SQL without markdown
%s`

const sqlDialectHint = "5. Write SQL for the %s dialect\n"

const visualizationPromptTemplate = `Pick the best visualization for this query and data.
Query: %s
Data sample: %s
User preference: %s

Available types: table, graph, pie
Consider:
1. Data types (categorical vs numerical)
2. Number of data points
3. The user's stated preference
4. Common visualization practice

Respond ONLY with the visualization type (table, graph, or pie)`

const summaryPromptTemplate = `Write a concise natural-language summary of these SQL query results.
Original query: %s
Visualization type: %s
Data sample: %s

Include:
1. A short description of the data structure
2. Key findings and numbers
3. Notable trends or patterns
4. Data quality notes, if any

Keep the response under 150 words. Use plain text. You may mark key figures with **bold** and start list lines with "* ".`
