package storage

const schema = `
-- Learning objectives group questions under a topic.
CREATE TABLE IF NOT EXISTS learning_objectives (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    priority TEXT NOT NULL DEFAULT 'Medium',
    tags TEXT NOT NULL DEFAULT '[]', -- JSON array
    mastery_percent REAL NOT NULL DEFAULT 0,
    source_id INTEGER,
    created_at DATETIME NOT NULL,

    FOREIGN KEY(source_id) REFERENCES sources(id) ON DELETE CASCADE
);

-- Multiple-choice questions. hash is the normalized content hash used to
-- dedupe imported questions.
CREATE TABLE IF NOT EXISTS questions (
    id TEXT PRIMARY KEY,
    objective_id TEXT NOT NULL,
    question_text TEXT NOT NULL,
    options TEXT NOT NULL DEFAULT '[]', -- JSON array
    answer TEXT NOT NULL,
    explanation TEXT NOT NULL DEFAULT '',
    hash TEXT NOT NULL UNIQUE,
    source_id INTEGER,
    created_at DATETIME NOT NULL,

    FOREIGN KEY(objective_id) REFERENCES learning_objectives(id) ON DELETE CASCADE,
    FOREIGN KEY(source_id) REFERENCES sources(id) ON DELETE CASCADE
);

-- Per-(user, question) scheduling state. last_review is NULL until the first
-- grading; the optimistic-concurrency check in SaveCard keys off it.
CREATE TABLE IF NOT EXISTS cards (
    user_id TEXT NOT NULL,
    question_id TEXT NOT NULL,
    state INTEGER NOT NULL DEFAULT 0, -- 0: New, 1: Learning, 2: Review, 3: Relearning
    step INTEGER NOT NULL DEFAULT 0,
    stability REAL NOT NULL DEFAULT 0,
    difficulty REAL NOT NULL DEFAULT 0,
    due_date DATETIME NOT NULL,
    last_review DATETIME,
    reps INTEGER NOT NULL DEFAULT 0,
    lapses INTEGER NOT NULL DEFAULT 0,

    PRIMARY KEY(user_id, question_id),
    FOREIGN KEY(question_id) REFERENCES questions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_cards_user_due ON cards(user_id, due_date);

-- One row per grading event, for history replay and analytics.
CREATE TABLE IF NOT EXISTS review_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    question_id TEXT NOT NULL,
    grade INTEGER NOT NULL,
    reviewed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_review_logs_user ON review_logs(user_id, reviewed_at);

-- Study sessions and the attempts recorded within them.
CREATE TABLE IF NOT EXISTS study_sessions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    session_type TEXT NOT NULL,
    started_at DATETIME NOT NULL,
    completed_at DATETIME,
    total_questions INTEGER NOT NULL DEFAULT 0,
    correct_answers INTEGER NOT NULL DEFAULT 0,
    accuracy REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_sessions_user ON study_sessions(user_id, completed_at);

CREATE TABLE IF NOT EXISTS question_attempts (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    question_id TEXT NOT NULL,
    user_answer TEXT NOT NULL,
    is_correct INTEGER NOT NULL,
    response_time_ms INTEGER NOT NULL DEFAULT 0,
    self_rating TEXT NOT NULL DEFAULT '',
    grade INTEGER NOT NULL,
    created_at DATETIME NOT NULL,

    FOREIGN KEY(session_id) REFERENCES study_sessions(id) ON DELETE CASCADE,
    FOREIGN KEY(question_id) REFERENCES questions(id) ON DELETE CASCADE
);

-- Deck sources: a local directory or a git repository of markdown decks.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    source_type TEXT NOT NULL, -- 'local' or 'git'
    last_scanned DATETIME
);
`
