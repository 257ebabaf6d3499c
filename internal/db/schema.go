package db

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS responses (
  id BIGSERIAL PRIMARY KEY,
  attempt_id TEXT NOT NULL,
  submitted_at BIGINT NOT NULL,
  student_id TEXT NOT NULL,
  student_name TEXT NOT NULL DEFAULT '',
  batch_code TEXT NOT NULL DEFAULT '',
  subject TEXT NOT NULL,
  subtopic TEXT NOT NULL,
  question_no TEXT NOT NULL,
  given_answer TEXT NOT NULL DEFAULT '',
  correct_answer TEXT NOT NULL DEFAULT '',
  awarded INTEGER NOT NULL DEFAULT 0 CHECK (awarded >= 0),
  marks INTEGER NOT NULL DEFAULT 1 CHECK (marks >= 1),
  attempt_type TEXT NOT NULL CHECK (attempt_type IN ('Main', 'Remedial')),
  CHECK (awarded <= marks)
);

CREATE INDEX IF NOT EXISTS idx_responses_batch ON responses (batch_code, subject, subtopic);
CREATE INDEX IF NOT EXISTS idx_responses_student ON responses (student_id, subtopic, attempt_type);

CREATE TABLE IF NOT EXISTS teacher_notifications (
  batch_code TEXT NOT NULL,
  subject TEXT NOT NULL,
  subtopic TEXT NOT NULL,
  notified_at BIGINT NOT NULL,
  PRIMARY KEY (batch_code, subject, subtopic)
);

CREATE TABLE IF NOT EXISTS main_questions (
  bank TEXT NOT NULL,
  question_id TEXT NOT NULL,
  subtopic_id TEXT NOT NULL,
  question_text TEXT NOT NULL DEFAULT '',
  option_a TEXT NOT NULL DEFAULT '',
  option_b TEXT NOT NULL DEFAULT '',
  option_c TEXT NOT NULL DEFAULT '',
  option_d TEXT NOT NULL DEFAULT '',
  correct_option TEXT NOT NULL DEFAULT '',
  image_url TEXT NOT NULL DEFAULT '',
  marks TEXT NOT NULL DEFAULT '',
  seq_no INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (bank, question_id)
);

CREATE TABLE IF NOT EXISTS remedial_questions (
  bank TEXT NOT NULL,
  remedial_question_id TEXT NOT NULL,
  main_question_id TEXT NOT NULL,
  question_text TEXT NOT NULL DEFAULT '',
  option_a TEXT NOT NULL DEFAULT '',
  option_b TEXT NOT NULL DEFAULT '',
  option_c TEXT NOT NULL DEFAULT '',
  option_d TEXT NOT NULL DEFAULT '',
  correct_option TEXT NOT NULL DEFAULT '',
  image_url TEXT NOT NULL DEFAULT '',
  hint TEXT NOT NULL DEFAULT '',
  marks TEXT NOT NULL DEFAULT '',
  seq_no INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (bank, remedial_question_id)
);
`

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS responses (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  attempt_id TEXT NOT NULL,
  submitted_at INTEGER NOT NULL,
  student_id TEXT NOT NULL,
  student_name TEXT NOT NULL DEFAULT '',
  batch_code TEXT NOT NULL DEFAULT '',
  subject TEXT NOT NULL,
  subtopic TEXT NOT NULL,
  question_no TEXT NOT NULL,
  given_answer TEXT NOT NULL DEFAULT '',
  correct_answer TEXT NOT NULL DEFAULT '',
  awarded INTEGER NOT NULL DEFAULT 0 CHECK (awarded >= 0),
  marks INTEGER NOT NULL DEFAULT 1 CHECK (marks >= 1),
  attempt_type TEXT NOT NULL CHECK (attempt_type IN ('Main', 'Remedial')),
  CHECK (awarded <= marks)
);

CREATE INDEX IF NOT EXISTS idx_responses_batch ON responses (batch_code, subject, subtopic);
CREATE INDEX IF NOT EXISTS idx_responses_student ON responses (student_id, subtopic, attempt_type);

CREATE TABLE IF NOT EXISTS teacher_notifications (
  batch_code TEXT NOT NULL,
  subject TEXT NOT NULL,
  subtopic TEXT NOT NULL,
  notified_at INTEGER NOT NULL,
  PRIMARY KEY (batch_code, subject, subtopic)
);

CREATE TABLE IF NOT EXISTS main_questions (
  bank TEXT NOT NULL,
  question_id TEXT NOT NULL,
  subtopic_id TEXT NOT NULL,
  question_text TEXT NOT NULL DEFAULT '',
  option_a TEXT NOT NULL DEFAULT '',
  option_b TEXT NOT NULL DEFAULT '',
  option_c TEXT NOT NULL DEFAULT '',
  option_d TEXT NOT NULL DEFAULT '',
  correct_option TEXT NOT NULL DEFAULT '',
  image_url TEXT NOT NULL DEFAULT '',
  marks TEXT NOT NULL DEFAULT '',
  seq_no INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (bank, question_id)
);

CREATE TABLE IF NOT EXISTS remedial_questions (
  bank TEXT NOT NULL,
  remedial_question_id TEXT NOT NULL,
  main_question_id TEXT NOT NULL,
  question_text TEXT NOT NULL DEFAULT '',
  option_a TEXT NOT NULL DEFAULT '',
  option_b TEXT NOT NULL DEFAULT '',
  option_c TEXT NOT NULL DEFAULT '',
  option_d TEXT NOT NULL DEFAULT '',
  correct_option TEXT NOT NULL DEFAULT '',
  image_url TEXT NOT NULL DEFAULT '',
  hint TEXT NOT NULL DEFAULT '',
  marks TEXT NOT NULL DEFAULT '',
  seq_no INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (bank, remedial_question_id)
);
`
