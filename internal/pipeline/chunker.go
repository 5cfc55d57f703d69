package pipeline

import "strings"

// Chunk 将长文本按目标字符长度切分为有序的分块。
// 算法：按空白分词后贪心累积，单词拼接长度（用单个空格连接）达到
// targetSize 即封闭当前分块；末尾不足 targetSize 的残块也会保留。
// 空输入返回 nil；超过 targetSize 的单个长词会独占一个分块，不做截断。
// 纯函数：相同输入与 targetSize 必然产生相同输出。
func Chunk(text string, targetSize int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	var current []string

	for _, word := range words {
		current = append(current, word)

		if len(strings.Join(current, " ")) >= targetSize {
			chunks = append(chunks, strings.Join(current, " "))
			current = nil
		}
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	return chunks
}
